// Package config loads the application configuration from config.toml
// and the environment. Secrets (API keys) come from the environment or
// a .env file; everything else lives in the TOML file with sensible
// defaults. The loaded Config is an immutable value threaded through
// the pipeline; nothing reads ambient environment after load.
//
// Environment Variables:
// - OPENAI_API_KEY: API key for the LLM provider
// - OPENAI_BASE_URL: LLM API endpoint URL (default: https://openrouter.ai/api/v1)
// - OPENAI_MODEL_ID: model name to use
// - CURSEFORGE_API_KEY: CurseForge API key (required)
// - WORK_DIR / OUTPUT_DIR: pipeline tree roots (default: work, output)
// - HISTORY_DB: run ledger location (default: <work>/run-history.db)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// Config holds all application configuration.
type Config struct {
	Modpack     ModpackConfig     `toml:"modpack"`
	Translation TranslationConfig `toml:"translation"`
	LLM         LLMConfig         `toml:"-"`
	CurseForge  CurseForgeConfig  `toml:"-"`
	Dictionary  DictionaryConfig  `toml:"dictionary"`
	Paths       PathsConfig       `toml:"paths"`
	Schedule    ScheduleConfig    `toml:"schedule"`
}

// ModpackConfig selects which modpacks to localize.
type ModpackConfig struct {
	Slugs []string `toml:"slugs"`
}

// TranslationConfig controls the Translate stage.
type TranslationConfig struct {
	TargetLang  string            `toml:"target_lang"`
	PackFormat  int               `toml:"pack_format"`
	LLMEnabled  bool              `toml:"llm_enabled"`
	BatchSize   int               `toml:"llm_batch_size"`
	Temperature float64           `toml:"llm_temperature"`
	TimeoutSec  int               `toml:"llm_timeout"`
	MaxRetries  int               `toml:"llm_max_retries"`
	Workers     int               `toml:"workers"`
	Terminology map[string]string `toml:"terminology"`
}

// LLMConfig holds the OpenAI-compatible provider settings.
type LLMConfig struct {
	APIKey    string
	APIURL    string
	Model     string
	MaxTokens int
}

// CurseForgeConfig holds the download client settings.
type CurseForgeConfig struct {
	APIKey string
}

// DictionaryConfig selects the community dictionary source.
type DictionaryConfig struct {
	URL string `toml:"url"`
}

// PathsConfig roots the work and output trees.
type PathsConfig struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	HistoryDB string `toml:"history_db"`
}

// ScheduleConfig configures the serve mode.
type ScheduleConfig struct {
	CronExpr string `toml:"cron_expr"`
}

// Load reads configuration from the given TOML file (optional) merged
// with environment variables. A .env file in the working directory is
// honored when present.
func Load(configPath string) (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Translation: TranslationConfig{
			TargetLang:  "zh_cn",
			PackFormat:  34,
			BatchSize:   50,
			Temperature: 0.3,
			TimeoutSec:  30,
			MaxRetries:  5,
			Workers:     getEnvInt("TRANSLATE_WORKERS", 4),
		},
		LLM: LLMConfig{
			APIKey:    getEnvString("OPENAI_API_KEY", ""),
			APIURL:    getEnvString("OPENAI_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:     getEnvString("OPENAI_MODEL_ID", "openai/gpt-4o-mini"),
			MaxTokens: getEnvInt("LLM_MAX_TOKENS", 8000),
		},
		CurseForge: CurseForgeConfig{
			APIKey: getEnvString("CURSEFORGE_API_KEY", ""),
		},
		Paths: PathsConfig{
			WorkDir:   getEnvString("WORK_DIR", "work"),
			OutputDir: getEnvString("OUTPUT_DIR", "output"),
		},
		Schedule: ScheduleConfig{
			CronExpr: getEnvString("CRON_EXPR", "0 4 * * *"),
		},
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if cfg.Paths.HistoryDB == "" {
		cfg.Paths.HistoryDB = getEnvString("HISTORY_DB", cfg.Paths.WorkDir+"/run-history.db")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if len(c.Modpack.Slugs) == 0 {
		return fmt.Errorf("at least one modpack slug is required")
	}
	for _, slug := range c.Modpack.Slugs {
		if strings.TrimSpace(slug) == "" {
			return fmt.Errorf("modpack slugs must not be empty")
		}
	}
	if c.CurseForge.APIKey == "" {
		return fmt.Errorf("CURSEFORGE_API_KEY is required")
	}
	if c.Translation.LLMEnabled && c.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when LLM translation is enabled")
	}
	if _, err := language.Parse(strings.ReplaceAll(c.Translation.TargetLang, "_", "-")); err != nil {
		return fmt.Errorf("invalid target language %q: %w", c.Translation.TargetLang, err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
