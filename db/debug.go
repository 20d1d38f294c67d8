package db

import (
	"context"
	"database/sql"
)

func openCLI(dbPath string) (*sql.DB, error) {
	return Open(dbPath)
}

func GetFlagCLI(dbPath, name string) (bool, error) {
	dbConn, err := openCLI(dbPath)
	if err != nil {
		return false, err
	}
	defer dbConn.Close()
	return GetFlag(context.Background(), dbConn, name, true)
}

func SetFlagCLI(dbPath, name string, value bool) error {
	dbConn, err := openCLI(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	return SetFlag(context.Background(), dbConn, name, value)
}

func ListFlagsCLI(dbPath string) (map[string]bool, error) {
	dbConn, err := openCLI(dbPath)
	if err != nil {
		return nil, err
	}
	defer dbConn.Close()
	return GetAllFlags(context.Background(), dbConn)
}

func GetSummaryCLI(dbPath, date string) (*StoredSummary, error) {
	dbConn, err := openCLI(dbPath)
	if err != nil {
		return nil, err
	}
	defer dbConn.Close()
	return GetSummary(context.Background(), dbConn, date)
}

func ListSummariesCLI(dbPath, from, to string) ([]StoredSummary, error) {
	dbConn, err := openCLI(dbPath)
	if err != nil {
		return nil, err
	}
	defer dbConn.Close()
	return ListSummaries(context.Background(), dbConn, from, to)
}

func ClearSummaryCLI(dbPath, date string) error {
	dbConn, err := openCLI(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	return DeleteSummary(context.Background(), dbConn, date)
}
