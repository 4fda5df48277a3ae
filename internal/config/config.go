package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "DOC_QUALITY_CONFIG"
	paperlessURLEnv   = "PAPERLESS_API_URL"
	paperlessTokenEnv = "PAPERLESS_API_TOKEN"
	databaseDSNEnv    = "DATABASE_DSN"
	lowQualityTagEnv  = "LOW_QUALITY_TAG_ID"
	highQualityTagEnv = "HIGH_QUALITY_TAG_ID"
	maxDocumentsEnv   = "MAX_DOCUMENTS"
	renameDocsEnv     = "RENAME_DOCUMENTS"
	checkpointPathEnv = "CHECKPOINT_PATH"
	logLevelEnv       = "LOG_LEVEL"
)

const defaultQualityPrompt = `Please review the following document content and determine if it is of low quality or high quality.
Low quality means the content contains many meaningless or unrelated words or sentences.
High quality means the content is clear, organized, and meaningful.
Respond strictly with "low quality" or "high quality".
Content:
`

const defaultTitlePrompt = `You are an expert at writing meaningful document titles.
Analyze the following content and produce a concise, descriptive title of at most 100 characters.
Respond with the title only, without explanation or extra text.
Content:
`

// Config holds high-level settings required across the application.
type Config struct {
	Paperless  PaperlessConfig  `yaml:"paperless"`
	Tags       TagConfig        `yaml:"tags"`
	Providers  []ProviderConfig `yaml:"providers"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Processing ProcessingConfig `yaml:"processing"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PaperlessConfig describes the document store connection.
type PaperlessConfig struct {
	APIURL       string `yaml:"apiUrl"`
	APIToken     string `yaml:"apiToken"`
	PageSize     int    `yaml:"pageSize"`
	MaxDocuments int    `yaml:"maxDocuments"`
}

// TagConfig carries the tag identifiers applied per verdict.
type TagConfig struct {
	LowQualityID  int `yaml:"lowQualityId"`
	HighQualityID int `yaml:"highQualityId"`
}

// ProviderConfig describes a single model endpoint of the ensemble.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	URL      string `yaml:"url"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// EvaluationConfig tunes prompts, truncation, timeouts and retries.
type EvaluationConfig struct {
	QualityPrompt       string `yaml:"qualityPrompt"`
	TitlePrompt         string `yaml:"titlePrompt"`
	ContentLimit        int    `yaml:"contentLimit"`
	TitleContentLimit   int    `yaml:"titleContentLimit"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds"`
	TitleTimeoutSeconds int    `yaml:"titleTimeoutSeconds"`
	RetryAttempts       int    `yaml:"retryAttempts"`
	RetryDelaySeconds   int    `yaml:"retryDelaySeconds"`
}

// Timeout returns the evaluation call timeout.
func (e EvaluationConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// TitleTimeout returns the title-generation call timeout.
func (e EvaluationConfig) TitleTimeout() time.Duration {
	return time.Duration(e.TitleTimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed pause between retry attempts.
func (e EvaluationConfig) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelaySeconds) * time.Second
}

// ProcessingConfig controls the per-document workflow.
type ProcessingConfig struct {
	RenameDocuments      bool `yaml:"renameDocuments"`
	SkipProcessed        bool `yaml:"skipProcessed"`
	IgnoreTagged         bool `yaml:"ignoreTagged"`
	DocumentDelaySeconds int  `yaml:"documentDelaySeconds"`
}

// DocumentDelay returns the pause between consecutive documents.
func (p ProcessingConfig) DocumentDelay() time.Duration {
	return time.Duration(p.DocumentDelaySeconds) * time.Second
}

// CheckpointConfig locates the durable progress state.
type CheckpointConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig describes the optional Postgres outcome mirror.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(paperlessURLEnv); v != "" {
		c.Paperless.APIURL = v
	}

	if v := os.Getenv(paperlessTokenEnv); v != "" {
		c.Paperless.APIToken = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(lowQualityTagEnv); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.Tags.LowQualityID = id
		}
	}

	if v := os.Getenv(highQualityTagEnv); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.Tags.HighQualityID = id
		}
	}

	if v := os.Getenv(maxDocumentsEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Paperless.MaxDocuments = n
		}
	}

	if v := os.Getenv(renameDocsEnv); v != "" {
		c.Processing.RenameDocuments = v == "yes" || v == "true"
	}

	if v := os.Getenv(checkpointPathEnv); v != "" {
		c.Checkpoint.Path = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Paperless.APIURL != "" {
		base.Paperless.APIURL = override.Paperless.APIURL
	}
	if override.Paperless.APIToken != "" {
		base.Paperless.APIToken = override.Paperless.APIToken
	}
	if override.Paperless.PageSize > 0 {
		base.Paperless.PageSize = override.Paperless.PageSize
	}
	if override.Paperless.MaxDocuments > 0 {
		base.Paperless.MaxDocuments = override.Paperless.MaxDocuments
	}

	if override.Tags.LowQualityID > 0 {
		base.Tags.LowQualityID = override.Tags.LowQualityID
	}
	if override.Tags.HighQualityID > 0 {
		base.Tags.HighQualityID = override.Tags.HighQualityID
	}

	if len(override.Providers) > 0 {
		base.Providers = override.Providers
	}

	if override.Evaluation.QualityPrompt != "" {
		base.Evaluation.QualityPrompt = override.Evaluation.QualityPrompt
	}
	if override.Evaluation.TitlePrompt != "" {
		base.Evaluation.TitlePrompt = override.Evaluation.TitlePrompt
	}
	if override.Evaluation.ContentLimit > 0 {
		base.Evaluation.ContentLimit = override.Evaluation.ContentLimit
	}
	if override.Evaluation.TitleContentLimit > 0 {
		base.Evaluation.TitleContentLimit = override.Evaluation.TitleContentLimit
	}
	if override.Evaluation.TimeoutSeconds > 0 {
		base.Evaluation.TimeoutSeconds = override.Evaluation.TimeoutSeconds
	}
	if override.Evaluation.TitleTimeoutSeconds > 0 {
		base.Evaluation.TitleTimeoutSeconds = override.Evaluation.TitleTimeoutSeconds
	}
	if override.Evaluation.RetryAttempts > 0 {
		base.Evaluation.RetryAttempts = override.Evaluation.RetryAttempts
	}
	if override.Evaluation.RetryDelaySeconds > 0 {
		base.Evaluation.RetryDelaySeconds = override.Evaluation.RetryDelaySeconds
	}

	base.Processing.RenameDocuments = base.Processing.RenameDocuments || override.Processing.RenameDocuments
	base.Processing.SkipProcessed = base.Processing.SkipProcessed || override.Processing.SkipProcessed
	base.Processing.IgnoreTagged = base.Processing.IgnoreTagged || override.Processing.IgnoreTagged
	if override.Processing.DocumentDelaySeconds > 0 {
		base.Processing.DocumentDelaySeconds = override.Processing.DocumentDelaySeconds
	}

	if override.Checkpoint.Path != "" {
		base.Checkpoint.Path = override.Checkpoint.Path
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

// Validate reports missing required settings before the loop starts. This is
// the only condition allowed to abort a run.
func (c Config) Validate() error {
	var missing []string

	if c.Paperless.APIURL == "" {
		missing = append(missing, "paperless.apiUrl")
	}
	if c.Paperless.APIToken == "" {
		missing = append(missing, "paperless.apiToken")
	}
	if c.Tags.LowQualityID <= 0 {
		missing = append(missing, "tags.lowQualityId")
	}
	if c.Tags.HighQualityID <= 0 {
		missing = append(missing, "tags.highQualityId")
	}
	if len(c.Providers) == 0 {
		missing = append(missing, "providers")
	}
	if c.Checkpoint.Path == "" {
		missing = append(missing, "checkpoint.path")
	}

	if len(missing) > 0 {
		return &MissingConfigError{Fields: missing}
	}

	return nil
}

func defaultConfig() Config {
	return Config{
		Paperless: PaperlessConfig{
			APIURL:       "http://localhost:8000/api",
			PageSize:     100,
			MaxDocuments: 100,
		},
		Tags: TagConfig{},
		Providers: []ProviderConfig{
			{
				Name:     "ollama-llama3",
				Kind:     "ollama",
				URL:      "http://localhost:11434",
				Endpoint: "/api/generate",
				Model:    "llama3",
			},
		},
		Evaluation: EvaluationConfig{
			QualityPrompt:       defaultQualityPrompt,
			TitlePrompt:         defaultTitlePrompt,
			ContentLimit:        8000,
			TitleContentLimit:   1000,
			TimeoutSeconds:      60,
			TitleTimeoutSeconds: 30,
			RetryAttempts:       3,
			RetryDelaySeconds:   2,
		},
		Processing: ProcessingConfig{
			SkipProcessed:        true,
			IgnoreTagged:         true,
			DocumentDelaySeconds: 1,
		},
		Checkpoint: CheckpointConfig{Path: "progress_state.json"},
		Logging:    LoggingConfig{Level: "info"},
	}
}
