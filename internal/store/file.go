package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"fleetwatch/internal/models"
)

// ConfigFile is the on-disk shape for file-driven deployments: the whole
// alerting configuration in one JSON document.
type ConfigFile struct {
	Rules    []models.AlertRule          `json:"rules"`
	Policies []models.EscalationPolicy   `json:"policies"`
	Channels []models.NotificationChannel `json:"channels"`
	Devices  []models.Device             `json:"devices"`
}

// LoadFile reads and validates a configuration file. Any invalid definition
// rejects the whole file, so a bad edit can never partially apply.
func LoadFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cf ConfigFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	for i := range cf.Rules {
		if err := cf.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("rule %q: %w", cf.Rules[i].Name, err)
		}
	}
	for i := range cf.Policies {
		if err := cf.Policies[i].Validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", cf.Policies[i].Name, err)
		}
	}
	for i := range cf.Channels {
		if err := cf.Channels[i].Validate(); err != nil {
			return nil, fmt.Errorf("channel %q: %w", cf.Channels[i].Name, err)
		}
	}
	return &cf, nil
}

func (cf *ConfigFile) Apply(m *MemoryStore) {
	m.Replace(cf.Rules, cf.Policies, cf.Channels, cf.Devices)
}

// Watch reloads the configuration file into the store each time it is
// written, until ctx is cancelled. A failed reload keeps the previous
// snapshot active. Editors often save via rename, so create events are
// treated like writes and the path is re-added afterwards.
func Watch(ctx context.Context, path string, m *MemoryStore, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	logger.Info("watching rule file", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cf, err := LoadFile(path)
			if err != nil {
				logger.Error("rule file reload failed, keeping previous rules",
					zap.String("path", path), zap.Error(err))
				continue
			}
			cf.Apply(m)
			logger.Info("rule file reloaded",
				zap.String("path", path), zap.Int("rules", len(cf.Rules)))

			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("rule file watcher error", zap.Error(err))
		}
	}
}
