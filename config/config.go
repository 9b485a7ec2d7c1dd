// Package config resolves runtime settings from command-line flags and
// the environment. Flags win over environment variables; a .env file, if
// present, seeds the environment first.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Token is the Telegram bot token. Required.
	Token string
	// LocalPort, when set, points the bot at a local Bot API relay on
	// http://localhost:<port> instead of api.telegram.org.
	LocalPort string
	// Colored enables ANSI colors in log output.
	Colored bool
	// OwnerID unlocks the /stats command for one user. Zero disables it.
	OwnerID int64
	// WorkDir is the base directory for per-job download workspaces.
	WorkDir string
}

// Load parses args (without the program name) and the environment.
// A missing token is not an error here; the caller decides how to exit.
func Load(args []string) (*Config, error) {
	// Best effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("rutube-dl-bot", flag.ContinueOnError)

	var token, localPort string
	var colored bool
	fs.StringVar(&token, "token", "", "Telegram bot token (overrides TOKEN)")
	fs.StringVar(&token, "t", "", "shorthand for -token")
	fs.StringVar(&localPort, "localport", "", "port of a local Bot API relay")
	fs.StringVar(&localPort, "l", "", "shorthand for -localport")
	fs.BoolVar(&colored, "colored", false, "colorize log output")
	fs.BoolVar(&colored, "c", false, "shorthand for -colored")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if token == "" {
		token = os.Getenv("TOKEN")
	}

	cfg := &Config{
		Token:     token,
		LocalPort: localPort,
		Colored:   colored,
		WorkDir:   os.Getenv("WORK_DIR"),
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}

	if raw := os.Getenv("OWNER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse OWNER_ID: %w", err)
		}
		cfg.OwnerID = id
	}

	return cfg, nil
}
