package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "kcalbot"

type Config struct {
	Telegram  TelegramConfig
	Nutrition NutritionConfig
	Storage   StorageConfig
	Server    ServerConfig
	Log       LogConfig
}

type TelegramConfig struct {
	Token string
}

type NutritionConfig struct {
	APIKey  string `split_words:"true"`
	BaseURL string `split_words:"true" default:"https://api.api-ninjas.com/v1/nutrition"`
}

type StorageConfig struct {
	DataDir string `split_words:"true"`
}

type ServerConfig struct {
	Port int `default:"8080"`

	// APIToken guards the /v1 ops routes. When empty those routes are not
	// mounted at all.
	APIToken string `split_words:"true"`
}

type LogConfig struct {
	Level string `default:"info"`
}

// Load reads configuration from a .env file (if present) and KCALBOT_*
// environment variables. The Telegram token and the nutrition API key are
// required; startup must fail loudly when either is missing rather than
// erroring per request later.
func Load() (Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Config{
		Storage: StorageConfig{DataDir: defaultDataDir()},
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	var missing []string
	if cfg.Telegram.Token == "" {
		missing = append(missing, "KCALBOT_TELEGRAM_TOKEN")
	}
	if cfg.Nutrition.APIKey == "" {
		missing = append(missing, "KCALBOT_NUTRITION_API_KEY")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// defaultDataDir places the database under $XDG_DATA_HOME/kcalbot, falling
// back to ~/.local/share/kcalbot.
func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "kcalbot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "kcalbot")
}
