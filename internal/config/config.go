package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/clausegest/internal/chunker"
)

// Index backends.
const (
	BackendSQLite    = "sqlite"
	BackendPathstore = "pathstore"
	BackendNone      = "none"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Index backend
	IndexBackend string
	DBPath       string

	// Pathstore connection
	PathstoreURL    string
	PathstoreAPIKey string
	PathstorePrefix string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentIndex int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel string

	// ChunkerFile is the optional YAML tuning file (CHUNKER_CONFIG).
	ChunkerFile string
	Chunker     ChunkerSettings
}

// ChunkerSettings are the chunking thresholds. They can be set from the
// "chunker" section of the tuning file and from the environment.
type ChunkerSettings struct {
	MaxTokens          int     `yaml:"max_tokens"`
	OverlapRatio       float64 `yaml:"overlap_ratio"`
	MinTitleWords      int     `yaml:"min_title_words"`
	MaxTitleWords      int     `yaml:"max_title_words"`
	HeaderOnlyMaxWords int     `yaml:"header_only_max_words"`
	MaxEnrichLines     int     `yaml:"max_enrich_lines"`
	ExtendWords        int     `yaml:"extend_words"`
	ShortPageWords     int     `yaml:"short_page_words"`
	TokenCounter       string  `yaml:"token_counter"`
	TiktokenEncoding   string  `yaml:"tiktoken_encoding"`
}

type fileConfig struct {
	Chunker ChunkerSettings `yaml:"chunker"`
}

func defaultChunkerSettings() ChunkerSettings {
	d := chunker.DefaultConfig()
	return ChunkerSettings{
		MaxTokens:          d.MaxTokens,
		OverlapRatio:       d.OverlapRatio,
		MinTitleWords:      d.MinTitleWords,
		MaxTitleWords:      d.MaxTitleWords,
		HeaderOnlyMaxWords: d.HeaderOnlyMaxWords,
		MaxEnrichLines:     d.MaxEnrichLines,
		ExtendWords:        d.ExtendWords,
		TokenCounter:       "words",
		TiktokenEncoding:   "cl100k_base",
	}
}

// Load builds the config from defaults, then the CHUNKER_CONFIG file when
// set, then environment variables.
func Load() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("CLAUSEGEST_API_KEY"),

		IndexBackend: strings.ToLower(envOr("INDEX_BACKEND", BackendSQLite)),
		DBPath:       envOr("DB_PATH", "data/clausegest.db"),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
		PathstorePrefix: envOr("PATHSTORE_PREFIX", "memory/users"),

		WorkerCount:        envInt("WORKER_COUNT", 4),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentIndex: envInt("MAX_CONCURRENT_INDEX", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel:    strings.ToLower(envOr("LOG_LEVEL", "info")),
		ChunkerFile: os.Getenv("CHUNKER_CONFIG"),
		Chunker:     defaultChunkerSettings(),
	}

	if cfg.ChunkerFile != "" {
		if err := cfg.loadChunkerFile(cfg.ChunkerFile); err != nil {
			return cfg, err
		}
	}
	cfg.applyChunkerEnv()

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentIndex <= 0 {
		cfg.MaxConcurrentIndex = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	return cfg, nil
}

// loadChunkerFile overlays the file's chunker section onto the current
// settings. Keys missing from the file keep their value.
func (c *Config) loadChunkerFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading chunker config: %w", err)
	}
	fc := fileConfig{Chunker: c.Chunker}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing chunker config %s: %w", path, err)
	}
	c.Chunker = fc.Chunker
	return nil
}

func (c *Config) applyChunkerEnv() {
	s := &c.Chunker
	s.MaxTokens = envInt("CHUNK_MAX_TOKENS", s.MaxTokens)
	s.OverlapRatio = envFloat("OVERLAP_RATIO", s.OverlapRatio)
	s.MinTitleWords = envInt("MIN_TITLE_WORDS", s.MinTitleWords)
	s.MaxTitleWords = envInt("MAX_HEADER_TITLE_WORDS", s.MaxTitleWords)
	s.HeaderOnlyMaxWords = envInt("HEADER_ONLY_MAX_WORDS", s.HeaderOnlyMaxWords)
	s.MaxEnrichLines = envInt("MAX_ENRICH_LINES", s.MaxEnrichLines)
	s.ExtendWords = envInt("EXTEND_WORDS", s.ExtendWords)
	s.ShortPageWords = envInt("SHORT_PAGE_WORDS", s.ShortPageWords)
	s.TokenCounter = strings.ToLower(envOr("TOKEN_COUNTER", s.TokenCounter))
	s.TiktokenEncoding = envOr("TIKTOKEN_ENCODING", s.TiktokenEncoding)
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("CLAUSEGEST_API_KEY is required")
	}
	switch c.IndexBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite backend")
		}
	case BackendPathstore:
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required for the pathstore backend")
		}
	case BackendNone:
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", c.IndexBackend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return c.Chunker.Validate()
}

// Validate checks the chunker thresholds.
func (s ChunkerSettings) Validate() error {
	if s.OverlapRatio < 0 || s.OverlapRatio >= 1 {
		return fmt.Errorf("overlap ratio must be in [0, 1), got %v", s.OverlapRatio)
	}
	if s.MaxTokens < 0 || s.ShortPageWords < 0 {
		return fmt.Errorf("token and word limits must not be negative")
	}
	switch s.TokenCounter {
	case "", "words", "tiktoken":
	default:
		return fmt.Errorf("unknown token counter %q", s.TokenCounter)
	}
	return nil
}

// ChunkerConfig converts the settings to a chunker.Config.
func (s ChunkerSettings) ChunkerConfig() chunker.Config {
	return chunker.Config{
		MaxTokens:          s.MaxTokens,
		OverlapRatio:       s.OverlapRatio,
		MinTitleWords:      s.MinTitleWords,
		MaxTitleWords:      s.MaxTitleWords,
		HeaderOnlyMaxWords: s.HeaderOnlyMaxWords,
		MaxEnrichLines:     s.MaxEnrichLines,
		ExtendWords:        s.ExtendWords,
	}
}

// NewChunker builds a chunker with the configured token counter.
func (s ChunkerSettings) NewChunker(log *slog.Logger) (*chunker.Chunker, error) {
	tc, err := chunker.NewTokenCounter(s.TokenCounter, s.TiktokenEncoding)
	if err != nil {
		return nil, err
	}
	return chunker.New(s.ChunkerConfig(), chunker.WithTokenCounter(tc), chunker.WithLogger(log)), nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return l, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
