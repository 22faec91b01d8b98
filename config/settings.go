package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server      ServerSettings      `json:"server"`
	Database    DatabaseSettings    `json:"database"`
	Catalog     CatalogSettings     `json:"catalog"`
	Log         LogSettings         `json:"log"`
	Maintenance MaintenanceSettings `json:"maintenance"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

// CatalogSettings configures the external metadata service.
type CatalogSettings struct {
	TMDBAPIKey    string `json:"tmdbApiKey"`
	Language      string `json:"language"`
	CacheTTLHours int    `json:"cacheTtlHours"`
}

// MaintenanceSettings controls the background refresh of show totals.
type MaintenanceSettings struct {
	RefreshEnabled       bool `json:"refreshEnabled"`
	RefreshIntervalHours int  `json:"refreshIntervalHours"`
}

type LogSettings struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"` // megabytes
	MaxAge     int    `json:"maxAge"`  // days
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Database: DatabaseSettings{
			Path: filepath.Join("data", "medialog.db"),
		},
		Catalog: CatalogSettings{
			Language:      "en-US",
			CacheTTLHours: 6,
		},
		Maintenance: MaintenanceSettings{
			RefreshEnabled:       true,
			RefreshIntervalHours: 12,
		},
		Log: LogSettings{
			File:       filepath.Join("data", "medialog.log"),
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and saves the settings file, creating it with defaults when
// missing.
type Manager struct {
	mu   sync.Mutex
	path string
}

// NewManager creates a settings manager for the given path.
func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Load reads settings from disk, writing defaults first when the file does
// not exist yet.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.saveLocked(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, fmt.Errorf("open settings: %w", err)
	}
	defer f.Close()

	settings := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// Save persists settings atomically via a temp file rename.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(s)
}

func (m *Manager) saveLocked(s Settings) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
