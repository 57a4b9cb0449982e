package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	Database  DatabaseConfig   `json:"database"`
	BlobStore BlobStoreConfig  `json:"blob_store"`
	AI        AIConfig         `json:"ai"`
	Chunking  ChunkingConfig   `json:"chunking"`
	Retrieval RetrievalConfig  `json:"retrieval"`
	Assembly  AssemblyConfig   `json:"assembly"`
	Jobs      JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type BlobStoreConfig struct {
	Type string   `json:"type"`
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type AIConfig struct {
	Provider       string             `json:"provider"`
	Data           json.RawMessage    `json:"data"`
	GenerateModel  string             `json:"generate_model"`
	EmbedModel     string             `json:"embed_model"`
	EmbedDimension int                `json:"embed_dimension"`
	TimeoutSeconds int                `json:"timeout_seconds"`
	CacheSize      int                `json:"cache_size"`
	CacheTTLHours  int                `json:"cache_ttl_hours"`
	Fallbacks      []AIProviderConfig `json:"fallbacks"`
}

// AIProviderConfig describes an extra provider tried when the primary
// one fails.
type AIProviderConfig struct {
	Provider      string          `json:"provider"`
	Data          json.RawMessage `json:"data"`
	GenerateModel string          `json:"generate_model"`
	EmbedModel    string          `json:"embed_model"`
}

type ChunkingConfig struct {
	MaxTokens      int `json:"max_tokens"`
	OverlapTokens  int `json:"overlap_tokens"`
	MinChunkTokens int `json:"min_chunk_tokens"`
	MaxRawBytes    int `json:"max_raw_bytes"`
}

type RetrievalConfig struct {
	TopK             int     `json:"top_k"`
	MinScore         float32 `json:"min_score"`
	HotWindowSize    int     `json:"hot_window_size"`
	ConversationSize int     `json:"conversation_size"`
}

type AssemblyConfig struct {
	CacheTTLSeconds  int     `json:"cache_ttl_seconds"`
	CacheSize        int     `json:"cache_size"`
	BackfillFreeFrac float64 `json:"backfill_free_frac"`
	MaxFileSummaries int     `json:"max_file_summaries"`
}

type JobsConfig struct {
	SummarySweepSpec       string `json:"summary_sweep_spec"`
	CacheCleanupSpec       string `json:"cache_cleanup_spec"`
	EmbedCacheKeepDays     int    `json:"embed_cache_keep_days"`
	SummarySweepBatchLimit int    `json:"summary_sweep_batch_limit"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.BlobStore.Type == "" {
		cfg.BlobStore.Type = "local"
	}
	switch cfg.BlobStore.Type {
	case "local":
		if cfg.BlobStore.Dir == "" {
			return nil, fmt.Errorf("blob_store.dir is required for local store")
		}
	case "s3":
		s3 := cfg.BlobStore.S3
		if s3.Endpoint == "" || s3.Bucket == "" || s3.SecretID == "" || s3.SecretKey == "" {
			return nil, fmt.Errorf("blob_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if cfg.BlobStore.S3.Region == "" {
			cfg.BlobStore.S3.Region = "us-east-1"
		}
	default:
		return nil, fmt.Errorf("blob_store.type must be local or s3")
	}
	if cfg.AI.EmbedDimension == 0 {
		cfg.AI.EmbedDimension = 768
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLHours == 0 {
		cfg.AI.CacheTTLHours = 24
	}
	applyChunkingDefaults(&cfg.Chunking)
	applyRetrievalDefaults(&cfg.Retrieval)
	applyAssemblyDefaults(&cfg.Assembly)
	if cfg.Jobs.SummarySweepSpec == "" {
		cfg.Jobs.SummarySweepSpec = "*/10 * * * *"
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "0 4 * * *"
	}
	if cfg.Jobs.EmbedCacheKeepDays == 0 {
		cfg.Jobs.EmbedCacheKeepDays = 30
	}
	if cfg.Jobs.SummarySweepBatchLimit == 0 {
		cfg.Jobs.SummarySweepBatchLimit = 20
	}
	return &cfg, nil
}

func applyChunkingDefaults(c *ChunkingConfig) {
	if c.MaxTokens == 0 {
		c.MaxTokens = 8000
	}
	if c.OverlapTokens == 0 {
		c.OverlapTokens = 256
	}
	if c.MinChunkTokens == 0 {
		c.MinChunkTokens = 1000
	}
	if c.MaxRawBytes == 0 {
		c.MaxRawBytes = 1 << 20
	}
}

func applyRetrievalDefaults(c *RetrievalConfig) {
	if c.TopK == 0 {
		c.TopK = 500
	}
	if c.MinScore == 0 {
		c.MinScore = 0.3
	}
	if c.HotWindowSize == 0 {
		c.HotWindowSize = 10
	}
	if c.ConversationSize == 0 {
		c.ConversationSize = 20
	}
}

func applyAssemblyDefaults(c *AssemblyConfig) {
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 300
	}
	if c.CacheSize == 0 {
		c.CacheSize = 4096
	}
	if c.BackfillFreeFrac == 0 {
		c.BackfillFreeFrac = 0.2
	}
	if c.MaxFileSummaries == 0 {
		c.MaxFileSummaries = 5
	}
}
