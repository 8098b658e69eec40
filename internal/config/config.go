package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	Log            LogConfig            `mapstructure:"log"`
	Duplicates     DuplicatesConfig     `mapstructure:"duplicates"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Bulk           BulkConfig           `mapstructure:"bulk"`
	Categories     CategoriesConfig     `mapstructure:"categories"`
	Import         ImportConfig         `mapstructure:"import"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path       string `mapstructure:"path"`
	Migrations string `mapstructure:"migrations"`
}

// LogConfig selects zerolog level and output format (console or json).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DuplicatesConfig tunes the duplicate detector.
type DuplicatesConfig struct {
	WindowDays       int     `mapstructure:"window_days"`
	ExactThreshold   float64 `mapstructure:"exact_threshold"`
	SimilarThreshold float64 `mapstructure:"similar_threshold"`
	MaxSimilar       int     `mapstructure:"max_similar"`
}

type ReconciliationConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

type BulkConfig struct {
	MaxItems int `mapstructure:"max_items"`
}

// CategoriesConfig bounds category trees. UniquePaths rejects two categories
// of one owner at the same path.
type CategoriesConfig struct {
	MaxDepth    int  `mapstructure:"max_depth"`
	UniquePaths bool `mapstructure:"unique_paths"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Load reads configuration from file and env. Env var overrides use prefix LEDGER_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("LEDGER_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "ledger"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit LEDGER_CONFIG must exist; the default location is optional
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "ledger", "ledger.db"))
	v.SetDefault("database.migrations", "internal/database/migrations")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("duplicates.window_days", 3)
	v.SetDefault("duplicates.exact_threshold", 0.9)
	v.SetDefault("duplicates.similar_threshold", 0.6)
	v.SetDefault("duplicates.max_similar", 5)
	v.SetDefault("reconciliation.tolerance", 0.01)
	v.SetDefault("bulk.max_items", 100)
	v.SetDefault("categories.max_depth", 50)
	v.SetDefault("categories.unique_paths", false)
	v.SetDefault("import.timezone", "UTC")
}
