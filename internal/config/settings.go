package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/vhosts/internal/infrastructure/filestore"
	"github.com/zjrosen/vhosts/internal/log"
	"github.com/zjrosen/vhosts/internal/paths"
)

// Settings is the stack description written once by `vhosts init` and read by the
// config generator scripts. Field names follow the on-disk settings.json.
type Settings struct {
	Stack          string `json:"stack"`
	ProjectsPath   string `json:"projectsPath"`
	ConfigPath     string `json:"configPath"`
	SSLPath        string `json:"sslPath"`
	SetupCompleted bool   `json:"setupCompleted"`
	SetupDate      string `json:"setupDate,omitempty"`
}

// DefaultSettings returns the settings assumed before setup has run.
func DefaultSettings() Settings {
	data := paths.DataDir()
	return Settings{
		ProjectsPath: filepath.Join(paths.HomeDir(), "projects"),
		ConfigPath:   data,
		SSLPath:      filepath.Join(data, "ssl"),
	}
}

// LoadSettings reads settings.json. A missing file yields DefaultSettings; fields
// absent from the file keep their defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug(log.CatConfig, "Settings file not found, using defaults", "path", path)
		return settings, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings writes settings.json atomically.
func SaveSettings(path string, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	data = append(data, '\n')
	return writeFileAtomic(path, data, ".settings.json.tmp.*")
}

// InitResult reports what CreateInitial did.
type InitResult struct {
	HostsFile    string
	SettingsFile string
	HostsCreated bool
}

// CreateInitial lays out a fresh installation under settings.ConfigPath: the conf and
// scripts directories, the SSL and projects directories, an empty hosts.json (left
// alone when one already exists) and settings.json marked as completed.
// hosts.json is created under the registry lock, waiting up to lock.Timeout.
func CreateInitial(ctx context.Context, settings Settings, now time.Time, lock filestore.GuardOptions) (InitResult, error) {
	if settings.ConfigPath == "" {
		return InitResult{}, fmt.Errorf("config path is required")
	}
	confDir := filepath.Join(settings.ConfigPath, paths.ConfDirName)
	dirs := []string{
		confDir,
		filepath.Join(settings.ConfigPath, "scripts"),
		settings.SSLPath,
		settings.ProjectsPath,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return InitResult{}, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	result := InitResult{
		HostsFile:    filepath.Join(confDir, paths.HostsFileName),
		SettingsFile: filepath.Join(confDir, paths.SettingsFileName),
	}

	created, err := filestore.NewRepository(result.HostsFile, filestore.Options{Guard: lock}).Create(ctx)
	if err != nil {
		return InitResult{}, fmt.Errorf("creating hosts file: %w", err)
	}
	result.HostsCreated = created

	settings.SetupCompleted = true
	settings.SetupDate = now.UTC().Format(time.RFC3339)
	if err := SaveSettings(result.SettingsFile, settings); err != nil {
		return InitResult{}, err
	}

	log.Info(log.CatConfig, "Initialized configuration",
		"conf", confDir, "hostsCreated", result.HostsCreated)
	return result, nil
}
