// Package config loads the layered JSONC configuration of the jsonfile command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

// Errors returned by [Load].
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrBaseDirEmpty       = errors.New("base-dir cannot be empty")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".jsonfile.json"

// Config holds all configuration options.
type Config struct {
	// From config files (serialized). Pointers distinguish "unset" from
	// explicit zero values when layering.
	BaseDir               string `json:"base_dir,omitempty"`
	Format                string `json:"format,omitempty"`
	MaxUncommittedChanges *int64 `json:"max_uncommitted_changes,omitempty"`
	MaxUncommittedTime    string `json:"max_uncommitted_time,omitempty"`
	SyncDir               *bool  `json:"sync_dir,omitempty"`

	// Resolved (computed, not serialized)
	EffectiveCwd string                `json:"-"`
	BaseDirAbs   string                `json:"-"`
	DefaultFmt   jsonfile.Format       `json:"-"`
	Policy       jsonfile.CommitPolicy `json:"-"`

	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	changes := jsonfile.DefaultMaxChanges
	syncDir := true

	return Config{
		BaseDir:               ".",
		Format:                jsonfile.FormatAuto.String(),
		MaxUncommittedChanges: &changes,
		MaxUncommittedTime:    jsonfile.DefaultMaxAge.String(),
		SyncDir:               &syncDir,
	}
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	BaseDirOverride *string           // --base-dir flag value; nil means no override
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
//  1. Defaults
//  2. Global user config ($XDG_CONFIG_HOME/jsonfile/config.json or ~/.config/jsonfile/config.json)
//  3. Project config file in the working directory (.jsonfile.json, if it exists)
//  4. Explicit config file via ConfigPath (replaces 3)
//  5. Flags
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := Default()

	globalPath := globalConfigPath(input.Env)
	if globalPath != "" {
		globalCfg, loaded, loadErr := loadFile(globalPath, false)
		if loadErr != nil {
			return Config{}, loadErr
		}

		if loaded {
			cfg = merge(cfg, globalCfg)
			cfg.Sources.Global = globalPath
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, projectCfg)
		cfg.Sources.Project = projectPath
	}

	if input.BaseDirOverride != nil {
		if *input.BaseDirOverride == "" {
			return Config{}, ErrBaseDirEmpty
		}

		cfg.BaseDir = *input.BaseDirOverride
	}

	err = cfg.resolve(workDir)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// resolve validates the layered values and fills the computed fields.
func (c *Config) resolve(workDir string) error {
	if c.BaseDir == "" {
		return ErrBaseDirEmpty
	}

	format, err := jsonfile.ParseFormat(c.Format)
	if err != nil {
		return fmt.Errorf("%w: format: %w", ErrConfigInvalid, err)
	}

	age, err := time.ParseDuration(c.MaxUncommittedTime)
	if err != nil {
		return fmt.Errorf("%w: max_uncommitted_time: %w", ErrConfigInvalid, err)
	}

	if age < 0 {
		return fmt.Errorf("%w: max_uncommitted_time must not be negative", ErrConfigInvalid)
	}

	c.EffectiveCwd = workDir
	c.DefaultFmt = format
	c.Policy = jsonfile.CommitPolicy{MaxChanges: *c.MaxUncommittedChanges, MaxAge: age}

	if filepath.IsAbs(c.BaseDir) {
		c.BaseDirAbs = filepath.Clean(c.BaseDir)
	} else {
		c.BaseDirAbs = filepath.Join(workDir, c.BaseDir)
	}

	return nil
}

// RegistryOptions returns the registry options for this configuration.
func (c *Config) RegistryOptions() jsonfile.Options {
	policy := c.Policy

	return jsonfile.Options{
		BaseDir:       c.BaseDirAbs,
		Policy:        &policy,
		SkipDirSync:   !*c.SyncDir,
		DefaultFormat: c.DefaultFmt,
	}
}

// Format renders the serialized fields as indented JSON.
func Format(c Config) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}

// globalConfigPath returns $XDG_CONFIG_HOME/jsonfile/config.json if set,
// otherwise ~/.config/jsonfile/config.json, or "" without a home directory.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "jsonfile", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "jsonfile", "config.json")
	}

	return ""
}

// loadFile loads a config file. If mustExist is false, a missing file
// returns loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	if cfg.explicitEmptyBaseDir {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrBaseDirEmpty)
	}

	return cfg.Config, true, nil
}

type parsed struct {
	Config

	explicitEmptyBaseDir bool
}

func parse(data []byte) (parsed, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return parsed{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return parsed{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	out := parsed{Config: cfg}

	if val, ok := raw["base_dir"].(string); ok && val == "" {
		out.explicitEmptyBaseDir = true
	}

	return out, nil
}

func merge(base, overlay Config) Config {
	if overlay.BaseDir != "" {
		base.BaseDir = overlay.BaseDir
	}

	if overlay.Format != "" {
		base.Format = overlay.Format
	}

	if overlay.MaxUncommittedChanges != nil {
		base.MaxUncommittedChanges = overlay.MaxUncommittedChanges
	}

	if overlay.MaxUncommittedTime != "" {
		base.MaxUncommittedTime = overlay.MaxUncommittedTime
	}

	if overlay.SyncDir != nil {
		base.SyncDir = overlay.SyncDir
	}

	return base
}
