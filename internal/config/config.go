package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/veil-waf/phishdash/internal/model"
	"github.com/veil-waf/phishdash/internal/predict"
)

// Config holds every runtime setting. Values come from the environment, after
// an optional .env file has been applied.
type Config struct {
	Port       string
	LogLevel   string
	Production bool

	ModelBackend   string
	ModelPath      string
	LabelScheme    predict.LabelScheme
	BenignLabel    model.Label
	MaliciousLabel model.Label
	RulesThreshold float64
	AWSRegion      string
	BedrockModel   string

	DatasetPath string
	TopN        int
	Keywords    []string

	DatabaseURL      string
	HistorySize      int
	HistoryRetention time.Duration
	DashboardToken   string

	TLSDomains []string
	ACMEEmail  string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:           get("PORT", "8080"),
		LogLevel:       get("LOG_LEVEL", "info"),
		Production:     get("PHISHDASH_ENV", "") == "production",
		ModelBackend:   get("MODEL_BACKEND", model.BackendFile),
		ModelPath:      get("MODEL_PATH", "model/phishing.json"),
		BenignLabel:    model.ParseLabel(getenv("BENIGN_LABEL")),
		MaliciousLabel: model.ParseLabel(getenv("MALICIOUS_LABEL")),
		AWSRegion:      get("AWS_REGION", ""),
		BedrockModel:   get("BEDROCK_MODEL", ""),
		DatasetPath:    get("DATASET_PATH", "data/phishing_site_urls.csv"),
		Keywords:       splitList(getenv("KEYWORDS")),
		DatabaseURL:    get("DATABASE_URL", ""),
		DashboardToken: get("DASHBOARD_TOKEN", ""),
		TLSDomains:     splitList(getenv("TLS_DOMAINS")),
		ACMEEmail:      get("ACME_EMAIL", ""),
	}

	var err error
	if cfg.LabelScheme, err = predict.ParseLabelScheme(getenv("LABEL_SCHEME")); err != nil {
		return nil, fmt.Errorf("LABEL_SCHEME: %w", err)
	}
	if v := get("RULES_THRESHOLD", ""); v != "" {
		if cfg.RulesThreshold, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("RULES_THRESHOLD: %w", err)
		}
	}
	if cfg.TopN, err = atoi(get("TOP_N", "10")); err != nil {
		return nil, fmt.Errorf("TOP_N: %w", err)
	}
	if cfg.HistorySize, err = atoi(get("HISTORY_SIZE", "200")); err != nil {
		return nil, fmt.Errorf("HISTORY_SIZE: %w", err)
	}
	if cfg.HistoryRetention, err = time.ParseDuration(get("HISTORY_RETENTION", "0s")); err != nil {
		return nil, fmt.Errorf("HISTORY_RETENTION: %w", err)
	}
	return cfg, nil
}

// ModelOptions is the loader view of the config.
func (c *Config) ModelOptions() model.Options {
	return model.Options{
		Backend:      c.ModelBackend,
		Path:         c.ModelPath,
		Threshold:    c.RulesThreshold,
		AWSRegion:    c.AWSRegion,
		BedrockModel: c.BedrockModel,
	}
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative: %d", n)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
