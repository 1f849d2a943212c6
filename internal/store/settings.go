package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/prota/internal/model"
)

const energyLevelKey = "energy_level"

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value for key, or "" when the key was never set.
func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// EnergyLevel returns the profile's declared energy, normal by default.
func (s *SettingsStore) EnergyLevel() (string, error) {
	v, err := s.Get(energyLevelKey)
	if err != nil {
		return "", err
	}
	level, ok := model.NormalizeEnergy(v)
	if !ok || level == "" {
		return model.EnergyNormal, nil
	}
	return level, nil
}

// SetEnergyLevel stores a normalized energy level.
func (s *SettingsStore) SetEnergyLevel(level string) (string, error) {
	normalized, ok := model.NormalizeEnergy(level)
	if !ok || normalized == "" {
		return "", fmt.Errorf("unknown energy level %q", level)
	}
	if err := s.Set(energyLevelKey, normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
