package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/larsmagnus/tfm/internal/task"
)

// Confirm controls which operations ask before running.
type Confirm struct {
	Pack   bool `json:"pack"`
	Unpack bool `json:"unpack"`
	Copy   bool `json:"copy"`
	Move   bool `json:"move"`
	Delete bool `json:"delete"`
	Quit   bool `json:"quit"`
}

type Config struct {
	Schema        int     `json:"schema"`
	LeftDir       string  `json:"left_dir,omitempty"`
	RightDir      string  `json:"right_dir,omitempty"`
	Editor        string  `json:"editor,omitempty"`
	ShowHidden    bool    `json:"show_hidden"`
	Confirm       Confirm `json:"confirm"`
	MaxLogEntries int     `json:"max_log_entries,omitempty"`
}

const CurrentConfigSchema = 1

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Schema:   CurrentConfigSchema,
		LeftDir:  home,
		RightDir: home,
		Editor:   "",
		Confirm: Confirm{
			Pack:   true,
			Unpack: true,
			Copy:   true,
			Move:   true,
			Delete: true,
			Quit:   true,
		},
		MaxLogEntries: 1000,
	}
}

func Load(configPath string) (*Config, error) {
	paths := getConfigPaths(configPath)

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		cfg := DefaultConfig()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}

		cfg.expandPaths()
		return cfg, nil
	}

	// First run: write the defaults so there is a file to edit. A config
	// dir that cannot be written still gets the in-memory defaults.
	cfg := DefaultConfig()
	if configPath == "" {
		_ = Save(cfg)
	}
	return cfg, nil
}

// Save writes the config to the primary path, creating the directory.
func Save(cfg *Config) error {
	path := getConfigPaths("")[0]
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func getConfigPaths(explicit string) []string {
	home, _ := os.UserHomeDir()

	var paths []string

	if explicit != "" {
		paths = append(paths, explicit)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "tfm", "config.json"))

	paths = append(paths, filepath.Join(home, ".tfm", "config.json"))

	return paths
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	expand := func(p string) string {
		if len(p) > 0 && p[0] == '~' {
			return filepath.Join(home, p[1:])
		}
		return p
	}
	c.LeftDir = expand(c.LeftDir)
	c.RightDir = expand(c.RightDir)
}

// ConfirmFor reports whether the given operation asks for confirmation.
func (c *Config) ConfirmFor(verb task.Verb) bool {
	switch verb {
	case task.VerbCreate:
		return c.Confirm.Pack
	case task.VerbExtract:
		return c.Confirm.Unpack
	case task.VerbCopy:
		return c.Confirm.Copy
	case task.VerbMove:
		return c.Confirm.Move
	case task.VerbDelete:
		return c.Confirm.Delete
	}
	return true
}

func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "tfm")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "tfm")
}

func (c *Config) LogPath() string {
	return filepath.Join(StateDir(), "tfm.log")
}

func (c *Config) StatePath() string {
	return filepath.Join(StateDir(), "state.db")
}
