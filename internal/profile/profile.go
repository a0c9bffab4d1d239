// Package profile holds the local user identity. The backend keys every
// record by user_id but has no signup flow; the client mints an id on first
// run and keeps it in a JSON file next to the config.
package profile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Load reads the profile at path.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadOrCreate returns the stored profile, minting and persisting a fresh
// identity when none exists yet.
func LoadOrCreate(path string) (Profile, error) {
	p, err := Load(path)
	if err == nil && p.UserID != "" {
		return p, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Profile{}, err
	}

	p = Profile{UserID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := save(path, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func save(path string, p Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
