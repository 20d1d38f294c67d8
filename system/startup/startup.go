package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ServiceUnit describes the systemd unit that keeps the monitor running.
type ServiceUnit struct {
	User       string
	WorkingDir string
	Binary     string
	ConfigFile string
	EnvFile    string
}

func (u ServiceUnit) validate() error {
	var missing []string
	if u.User == "" {
		missing = append(missing, "user")
	}
	if u.WorkingDir == "" {
		missing = append(missing, "workdir")
	}
	if u.Binary == "" {
		missing = append(missing, "binary")
	}
	if len(missing) > 0 {
		return fmt.Errorf("service unit missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Render returns the unit file contents.
func (u ServiceUnit) Render() (string, error) {
	if err := u.validate(); err != nil {
		return "", err
	}

	execCmd := u.Binary
	if u.ConfigFile != "" {
		execCmd += " -config-file " + u.ConfigFile
	}
	if u.EnvFile != "" {
		execCmd += " -env-file " + u.EnvFile
	}

	return fmt.Sprintf(`[Unit]
Description=WatchPower inverter monitor
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User=%s
WorkingDirectory=%s
ExecStart=%s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, u.User, u.WorkingDir, execCmd), nil
}

// InstallService writes the unit to path, creating parent directories.
func InstallService(path string, u ServiceUnit) error {
	unit, err := u.Render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create unit directory: %w", err)
	}
	return os.WriteFile(path, []byte(unit), 0644)
}
