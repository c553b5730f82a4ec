package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MetadataBackend selects the relational metadata store implementation.
type MetadataBackend string

const (
	MetadataBackendSQLite   MetadataBackend = "sqlite"
	MetadataBackendPostgres MetadataBackend = "postgres"
)

// LexicalBackend selects the full-text search implementation.
type LexicalBackend string

const (
	LexicalBackendFTS5   LexicalBackend = "fts5"
	LexicalBackendPGFTS  LexicalBackend = "pg_fts"
)

// VectorBackend selects the approximate nearest-neighbor implementation.
type VectorBackend string

const (
	VectorBackendHNSW     VectorBackend = "hnsw"
	VectorBackendPGVector VectorBackend = "pgvector"
)

// Config is the complete docsearch configuration.
// It mirrors the layout described in SPEC_FULL.md section 6.
type Config struct {
	MetadataBackend MetadataBackend `yaml:"metadata_backend" json:"metadata_backend"`
	LexicalBackend  LexicalBackend  `yaml:"lexical_backend" json:"lexical_backend"`
	VectorBackend   VectorBackend   `yaml:"vector_backend" json:"vector_backend"`

	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Postgres  PostgresConfig  `yaml:"postgres" json:"postgres"`
	Ingestion IngestionConfig `yaml:"ingestion" json:"ingestion"`
	Bookmarks BookmarksConfig `yaml:"bookmarks" json:"bookmarks"`
	WebFetch  WebFetchConfig  `yaml:"web_fetch" json:"web_fetch"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Indexing  IndexingConfig  `yaml:"indexing" json:"indexing"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// StorageConfig configures on-disk paths.
type StorageConfig struct {
	DataDir    string `yaml:"data_dir" json:"data_dir"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
	VectorDir  string `yaml:"vector_dir" json:"vector_dir"`
}

// PostgresConfig configures the Postgres backend, used only when any
// backend enum selects postgres/pg_fts/pgvector.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// IngestionConfig configures chunking and file-size limits.
type IngestionConfig struct {
	ChunkSizeTokens    int `yaml:"chunk_size_tokens" json:"chunk_size_tokens"`
	ChunkOverlapTokens int `yaml:"chunk_overlap_tokens" json:"chunk_overlap_tokens"`
	MaxFileMB          int `yaml:"max_file_mb" json:"max_file_mb"`
}

// BookmarksConfig configures bookmarks-source ingestion.
type BookmarksConfig struct {
	// RootNames restricts which bookmark roots are traversed (empty = all).
	RootNames []string `yaml:"root_names" json:"root_names"`
}

// WebFetchConfig configures HTML extraction over HTTP(S).
type WebFetchConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	TimeoutSec int   `yaml:"timeout_sec" json:"timeout_sec"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	ModelName  string `yaml:"model_name" json:"model_name"`
	Dim        int    `yaml:"dim" json:"dim"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec" json:"timeout_sec"`
}

// IndexingConfig holds indexing settings. MaxConcurrentRequests is loaded
// and validated, but no component reads it; indexing concurrency is not
// bounded by it.
type IndexingConfig struct {
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" json:"max_concurrent_requests"`
}

// LoggingConfig mirrors internal/logging.Config, expressed as plain
// config fields so it can be loaded from YAML/env alongside the rest.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	FilePath    string `yaml:"file_path" json:"file_path"`
	AlsoStderr  bool   `yaml:"also_stderr" json:"also_stderr"`
}

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		MetadataBackend: MetadataBackendSQLite,
		LexicalBackend:  LexicalBackendFTS5,
		VectorBackend:   VectorBackendHNSW,
		Storage: StorageConfig{
			DataDir:    dataDir,
			SQLitePath: filepath.Join(dataDir, "metadata.db"),
			VectorDir:  filepath.Join(dataDir, "vector_index"),
		},
		Postgres: PostgresConfig{
			DSN: "",
		},
		Ingestion: IngestionConfig{
			ChunkSizeTokens:    512,
			ChunkOverlapTokens: 64,
			MaxFileMB:          25,
		},
		Bookmarks: BookmarksConfig{
			RootNames: nil,
		},
		WebFetch: WebFetchConfig{
			Enabled:    false,
			TimeoutSec: 30,
			UserAgent:  "docsearch/1.0",
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai-compatible",
			ModelName:  "text-embedding-3-small",
			Dim:        1536,
			BaseURL:    "http://localhost:11434",
			TimeoutSec: 60,
		},
		Indexing: IndexingConfig{
			MaxConcurrentRequests: 2,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "",
			AlsoStderr: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// defaultDataDir returns ~/.local/share/docsearch, falling back to a temp
// directory when the home directory cannot be determined.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsearch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "docsearch")
	}
	return filepath.Join(home, ".local", "share", "docsearch")
}

// GetUserConfigPath returns the path to the user-level configuration file,
// following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "docsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration with the following precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/docsearch/config.yaml)
//  3. Project config (./docsearch.yaml in dir)
//  4. Environment variables (APP_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config from %s: %w", userPath, err)
		}
	}

	projectPath := filepath.Join(dir, "docsearch.yaml")
	if fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, fmt.Errorf("failed to load project config from %s: %w", projectPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration fields from a YAML file on top
// of the existing (already-defaulted) Config.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// WriteYAML writes the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides applies APP_SECTION_FIELD environment variable
// overrides, mirroring the original_source loader's convention.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APP_METADATA_BACKEND"); v != "" {
		c.MetadataBackend = MetadataBackend(v)
	}
	if v := os.Getenv("APP_LEXICAL_BACKEND"); v != "" {
		c.LexicalBackend = LexicalBackend(v)
	}
	if v := os.Getenv("APP_VECTOR_BACKEND"); v != "" {
		c.VectorBackend = VectorBackend(v)
	}

	if v := os.Getenv("APP_STORAGE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("APP_STORAGE_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("APP_STORAGE_VECTOR_DIR"); v != "" {
		c.Storage.VectorDir = v
	}

	if v := os.Getenv("APP_POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}

	if v := os.Getenv("APP_INGESTION_CHUNK_SIZE_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ingestion.ChunkSizeTokens = n
		}
	}
	if v := os.Getenv("APP_INGESTION_CHUNK_OVERLAP_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ingestion.ChunkOverlapTokens = n
		}
	}
	if v := os.Getenv("APP_INGESTION_MAX_FILE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ingestion.MaxFileMB = n
		}
	}

	if v := os.Getenv("APP_WEB_FETCH_ENABLED"); v != "" {
		c.WebFetch.Enabled = parseBool(v)
	}
	if v := os.Getenv("APP_WEB_FETCH_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WebFetch.TimeoutSec = n
		}
	}
	if v := os.Getenv("APP_WEB_FETCH_USER_AGENT"); v != "" {
		c.WebFetch.UserAgent = v
	}

	if v := os.Getenv("APP_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("APP_EMBEDDING_MODEL_NAME"); v != "" {
		c.Embedding.ModelName = v
	}
	if v := os.Getenv("APP_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.Dim = n
		}
	}
	if v := os.Getenv("APP_EMBEDDING_BASE_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("APP_EMBEDDING_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.TimeoutSec = n
		}
	}

	if v := os.Getenv("APP_INDEXING_MAX_CONCURRENT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Indexing.MaxConcurrentRequests = n
		}
	}

	if v := os.Getenv("APP_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("APP_LOGGING_FILE_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("APP_LOGGING_ALSO_STDERR"); v != "" {
		c.Logging.AlsoStderr = parseBool(v)
	}

	if v := os.Getenv("APP_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// Validate checks invariants on the configuration, returning a descriptive
// error for the first violation found.
func (c *Config) Validate() error {
	switch c.MetadataBackend {
	case MetadataBackendSQLite, MetadataBackendPostgres:
	default:
		return fmt.Errorf("metadata_backend must be 'sqlite' or 'postgres', got %q", c.MetadataBackend)
	}
	switch c.LexicalBackend {
	case LexicalBackendFTS5, LexicalBackendPGFTS:
	default:
		return fmt.Errorf("lexical_backend must be 'fts5' or 'pg_fts', got %q", c.LexicalBackend)
	}
	switch c.VectorBackend {
	case VectorBackendHNSW, VectorBackendPGVector:
	default:
		return fmt.Errorf("vector_backend must be 'hnsw' or 'pgvector', got %q", c.VectorBackend)
	}

	usesPostgres := c.MetadataBackend == MetadataBackendPostgres ||
		c.LexicalBackend == LexicalBackendPGFTS ||
		c.VectorBackend == VectorBackendPGVector
	if usesPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when any backend selects postgres/pg_fts/pgvector")
	}

	if c.Ingestion.ChunkSizeTokens <= 0 {
		return fmt.Errorf("ingestion.chunk_size_tokens must be > 0, got %d", c.Ingestion.ChunkSizeTokens)
	}
	if c.Ingestion.ChunkOverlapTokens < 0 {
		return fmt.Errorf("ingestion.chunk_overlap_tokens must be >= 0, got %d", c.Ingestion.ChunkOverlapTokens)
	}
	if c.Ingestion.ChunkOverlapTokens >= c.Ingestion.ChunkSizeTokens {
		return fmt.Errorf("ingestion.chunk_overlap_tokens (%d) must be less than chunk_size_tokens (%d)",
			c.Ingestion.ChunkOverlapTokens, c.Ingestion.ChunkSizeTokens)
	}
	if c.Ingestion.MaxFileMB <= 0 {
		return fmt.Errorf("ingestion.max_file_mb must be > 0, got %d", c.Ingestion.MaxFileMB)
	}

	if c.WebFetch.TimeoutSec <= 0 {
		return fmt.Errorf("web_fetch.timeout_sec must be > 0, got %d", c.WebFetch.TimeoutSec)
	}

	if c.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding.dim must be > 0, got %d", c.Embedding.Dim)
	}
	if c.Embedding.TimeoutSec <= 0 {
		return fmt.Errorf("embedding.timeout_sec must be > 0, got %d", c.Embedding.TimeoutSec)
	}

	if c.Indexing.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("indexing.max_concurrent_requests must be > 0, got %d", c.Indexing.MaxConcurrentRequests)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
