package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete gateway configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains the listener configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings contains the ledger and persistence configuration.
type GameSettings struct {
	DataFile        string   `hcl:"data_file,optional"`
	BackupDir       string   `hcl:"backup_dir,optional"`
	SnapshotSeconds int      `hcl:"snapshot_interval_seconds,optional"`
	ClaimBonus      int      `hcl:"claim_bonus,optional"`
	// Operators may configure rounds, grant fluxbux, settle and link
	// aliases. Empty means every participant is an operator.
	Operators []string `hcl:"operators,optional"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameSettings{
			DataFile:        "database.json",
			BackupDir:       "backup",
			SnapshotSeconds: 5,
			ClaimBonus:      100,
		},
	}
}

// LoadConfig loads gateway configuration from an HCL file, applying
// defaults for anything unset. A missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.DataFile == "" {
		config.Game.DataFile = defaults.Game.DataFile
	}
	if config.Game.BackupDir == "" {
		config.Game.BackupDir = defaults.Game.BackupDir
	}
	if config.Game.SnapshotSeconds == 0 {
		config.Game.SnapshotSeconds = defaults.Game.SnapshotSeconds
	}
	if config.Game.ClaimBonus == 0 {
		config.Game.ClaimBonus = defaults.Game.ClaimBonus
	}
	return &config, nil
}

// Validate checks the configuration for impossible values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.SnapshotSeconds < 1 {
		return fmt.Errorf("snapshot interval must be at least 1 second")
	}
	if c.Game.ClaimBonus < 0 {
		return fmt.Errorf("claim bonus cannot be negative")
	}
	return nil
}

// ListenAddress returns the full listener address.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
