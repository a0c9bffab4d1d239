package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/loopmind/internal/backend"
	"github.com/csheth/loopmind/internal/config"
	"github.com/csheth/loopmind/internal/generation"
	"github.com/csheth/loopmind/internal/logging"
	"github.com/csheth/loopmind/internal/media"
	"github.com/csheth/loopmind/internal/profile"
	"github.com/csheth/loopmind/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML settings file")
	endpoint := flag.String("endpoint", "", "backend base URL (overrides the config file)")
	profilePath := flag.String("profile", "", "path to the local profile JSON (overrides the config file)")
	logPath := flag.String("log", "", "path to the debug log file (overrides the config file)")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("failed to load config:", err)
		os.Exit(1)
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *profilePath != "" {
		cfg.ProfilePath = *profilePath
	}
	if *logPath != "" {
		cfg.LogPath = *logPath
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv("LOOPMIND_ENDPOINT")
	}
	if cfg.Endpoint == "" {
		fmt.Println("no backend endpoint configured; pass -endpoint or set LOOPMIND_ENDPOINT")
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.ProfilePath), 0o755); err != nil {
		fmt.Println("failed to prepare config directory:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogPath)
	if err != nil {
		fmt.Println("logging disabled:", err)
		logger = logging.Nop()
	}

	user, err := profile.LoadOrCreate(cfg.ProfilePath)
	if err != nil {
		fmt.Println("failed to load profile:", err)
		os.Exit(1)
	}

	images, err := media.New(&http.Client{Timeout: 30 * time.Second})
	if err != nil {
		logger.Warnw("image cache disabled", "err", err)
		images = nil
	}

	client := backend.New(backend.Config{
		BaseURL:        cfg.Endpoint,
		UserID:         user.UserID,
		RequestTimeout: cfg.RequestTimeout.Std(),
		Logger:         logger,
	})

	opts := []tea.ProgramOption{}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Backend: client,
			Images:  images,
			Logger:  logger,
			Polling: generation.Params{
				FirstPollDelay: cfg.FirstPollDelay.Std(),
				ShortInterval:  cfg.ShortInterval.Std(),
				LongInterval:   cfg.LongInterval.Std(),
				SlowdownAfter:  cfg.SlowdownAfter.Std(),
				Deadline:       cfg.Deadline.Std(),
			},
		}),
		opts...,
	)

	if _, err := program.Run(); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}
