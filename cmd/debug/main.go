package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/thatsimonsguy/watchpower-monitor/db"
	"github.com/thatsimonsguy/watchpower-monitor/system/startup"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, name, value, date, from, to string
	var unitPath, user, workdir, binary, configFile, envFile string
	flag.StringVar(&dbPath, "db", "data/watchpower.db", "Path to the SQLite database file")
	flag.StringVar(&command, "cmd", "", "Command to run: get-flag, set-flag, list-flags, show-summary, list-summaries, clear-summary, install-service")
	flag.StringVar(&name, "name", "grid_feeding_enabled", "Flag name for flag commands")
	flag.StringVar(&value, "value", "", "Flag value for set-flag (true/false)")
	flag.StringVar(&date, "date", "", "Date (YYYY-MM-DD) for summary commands")
	flag.StringVar(&from, "from", "0000-01-01", "Start date for list-summaries")
	flag.StringVar(&to, "to", "9999-12-31", "End date for list-summaries")
	flag.StringVar(&unitPath, "unit", "/etc/systemd/system/watchpower-monitor.service", "Unit file path for install-service")
	flag.StringVar(&user, "user", "", "Service user for install-service")
	flag.StringVar(&workdir, "workdir", "", "Working directory for install-service")
	flag.StringVar(&binary, "binary", "", "Monitor binary for install-service")
	flag.StringVar(&configFile, "config-file", "", "Config file passed to the service")
	flag.StringVar(&envFile, "env-file", "", "Env file passed to the service")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of watchpower-debug:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	var err error
	switch command {
	case "get-flag":
		var v bool
		v, err = db.GetFlagCLI(dbPath, name)
		if err == nil {
			fmt.Printf("%s = %t\n", name, v)
		}
	case "set-flag":
		v, parseErr := strconv.ParseBool(value)
		if parseErr != nil {
			fmt.Println("Error: -value must be true or false")
			os.Exit(1)
		}
		err = db.SetFlagCLI(dbPath, name, v)
	case "list-flags":
		var all map[string]bool
		all, err = db.ListFlagsCLI(dbPath)
		if err == nil {
			printJSON(all)
		}
	case "show-summary":
		requireDate(date)
		var s *db.StoredSummary
		s, err = db.GetSummaryCLI(dbPath, date)
		if err == nil {
			printJSON(s)
		}
	case "list-summaries":
		var all []db.StoredSummary
		all, err = db.ListSummariesCLI(dbPath, from, to)
		if err == nil {
			printJSON(all)
		}
	case "clear-summary":
		requireDate(date)
		err = db.ClearSummaryCLI(dbPath, date)
	case "install-service":
		err = startup.InstallService(unitPath, startup.ServiceUnit{
			User:       user,
			WorkingDir: workdir,
			Binary:     binary,
			ConfigFile: configFile,
			EnvFile:    envFile,
		})
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}

func requireDate(date string) {
	if date == "" {
		fmt.Println("Error: -date is required")
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
