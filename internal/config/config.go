package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the shell.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Services    ServicesConfig            `json:"services"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// ServicesConfig points at the remote collaborators. An empty URL means the
// shell falls back to a local implementation where one exists (extraction,
// inference) or skips the stage entirely (crawl).
type ServicesConfig struct {
	ExtractURL string `json:"extract_url"`
	CrawlURL   string `json:"crawl_url"`
	ChatURL    string `json:"chat_url"`
}

type BasicConfig struct {
	ServerAddress   string `json:"server_address"`
	PreferencesPath string `json:"preferences_path"`
	TokenPath       string `json:"token_path"`
	UploadsDir      string `json:"uploads_dir"`
	LogLevel        string `json:"log_level"`
	WatchPrefs      bool   `json:"watch_prefs"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.BasicConfig.PreferencesPath == "" {
		cfg.BasicConfig.PreferencesPath = filepath.Join(filepath.Dir(absPath), "preferences.json")
	} else if !filepath.IsAbs(cfg.BasicConfig.PreferencesPath) {
		cfg.BasicConfig.PreferencesPath = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.PreferencesPath)
	}

	for name, db := range cfg.Databases {
		if name == "mysql" || db.DSN == "" || filepath.IsAbs(db.DSN) {
			continue
		}
		db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
		cfg.Databases[name] = db
	}

	return &cfg, nil
}
