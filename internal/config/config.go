// Package config loads the optional YAML settings file. Flags on the binary
// override anything set here; missing file means defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "4s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Endpoint    string `yaml:"endpoint"`
	ProfilePath string `yaml:"profile_path"`
	LogPath     string `yaml:"log_path"`

	RequestTimeout Duration `yaml:"request_timeout"`
	FirstPollDelay Duration `yaml:"first_poll_delay"`
	ShortInterval  Duration `yaml:"short_poll_interval"`
	LongInterval   Duration `yaml:"long_poll_interval"`
	SlowdownAfter  Duration `yaml:"poll_slowdown_after"`
	Deadline       Duration `yaml:"generation_deadline"`
}

// Default returns the built-in settings. Paths land under the user config
// and cache directories.
func Default() Config {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "loopmind")
	return Config{
		Endpoint:       "",
		ProfilePath:    filepath.Join(dir, "profile.json"),
		LogPath:        filepath.Join(dir, "loopmind.log"),
		RequestTimeout: Duration(10 * time.Second),
		FirstPollDelay: Duration(4 * time.Second),
		ShortInterval:  Duration(4 * time.Second),
		LongInterval:   Duration(8 * time.Second),
		SlowdownAfter:  Duration(2 * time.Minute),
		Deadline:       Duration(4 * time.Minute),
	}
}

// Load merges the YAML file at path over the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
