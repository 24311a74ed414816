// Package config loads runtime settings for the statement pipeline.
// Values are resolved in order: defaults, optional YAML file, .env file,
// process environment. Validate is applied last.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "STMT_"

// OCR engine names.
const (
	OCREngineTesseract = "tesseract"
	OCREngineGemini    = "gemini"
)

// Config is the complete runtime configuration.
type Config struct {
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Extract   ExtractConfig   `yaml:"extract"`
	OCR       OCRConfig       `yaml:"ocr"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Batch     BatchConfig     `yaml:"batch"`
	BigQuery  BigQueryConfig  `yaml:"bigquery"`
	Notion    NotionConfig    `yaml:"notion"`
	Log       LogConfig       `yaml:"log"`
}

// ArtifactsConfig controls where finished documents are persisted.
type ArtifactsConfig struct {
	Dir          string `yaml:"dir"`
	Bucket       string `yaml:"bucket"` // when set, artifacts go to GCS
	Prefix       string `yaml:"prefix"`
	Gzip         bool   `yaml:"gzip"`
	IncludeTexts bool   `yaml:"include_texts"`
}

// ExtractConfig holds the page extraction caps.
type ExtractConfig struct {
	MaxPages        int `yaml:"max_pages"`
	MaxCharsPerPage int `yaml:"max_chars_per_page"`
	MinNativeChars  int `yaml:"min_native_chars"`
	Workers         int `yaml:"workers"`
}

// OCRConfig selects and tunes the OCR fallback.
type OCRConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Engine        string `yaml:"engine"`
	MaxPages      int    `yaml:"max_pages"`
	DPI           int    `yaml:"dpi"`
	MaxConcurrent int    `yaml:"max_concurrent"`

	TesseractPath  string `yaml:"tesseract_path"`
	PdftoppmPath   string `yaml:"pdftoppm_path"`
	TesseractLangs string `yaml:"tesseract_langs"`
	TesseractOEM   int    `yaml:"tesseract_oem"`
	TesseractPSM   int    `yaml:"tesseract_psm"`

	GeminiModel string `yaml:"gemini_model"`
}

// PipelineConfig holds per-document processing settings.
type PipelineConfig struct {
	DocumentTimeout time.Duration `yaml:"document_timeout"`
	MaskPII         bool          `yaml:"mask_pii"`
	OwnerID         string        `yaml:"owner_id"`
}

// BatchConfig sizes the batch worker pool.
type BatchConfig struct {
	Workers    int `yaml:"workers"`
	QueueSize  int `yaml:"queue_size"`
	MaxRetries int `yaml:"max_retries"`
}

// BigQueryConfig locates the downstream warehouse.
type BigQueryConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
}

// NotionConfig locates the manual-review database.
type NotionConfig struct {
	Token            string `yaml:"token"`
	ReviewDatabaseID string `yaml:"review_database_id"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Artifacts: ArtifactsConfig{
			Dir:          "/tmp/statement_artifacts",
			Prefix:       "artifacts",
			IncludeTexts: true,
		},
		Extract: ExtractConfig{
			MaxPages:        200,
			MaxCharsPerPage: 20000,
			MinNativeChars:  20,
			Workers:         runtime.NumCPU(),
		},
		OCR: OCRConfig{
			Enabled:        true,
			Engine:         OCREngineTesseract,
			MaxPages:       5,
			DPI:            300,
			MaxConcurrent:  2,
			TesseractPath:  "tesseract",
			PdftoppmPath:   "pdftoppm",
			TesseractLangs: "eng",
			TesseractOEM:   1,
			TesseractPSM:   6,
			GeminiModel:    "gemini-2.5-flash",
		},
		Pipeline: PipelineConfig{
			DocumentTimeout: 2 * time.Minute,
			OwnerID:         "default",
		},
		Batch: BatchConfig{
			Workers:   4,
			QueueSize: 100,
		},
		BigQuery: BigQueryConfig{
			Dataset: "finance",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load resolves the configuration. path may be empty; a missing .env file is ignored.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate rejects unusable values and clamps the OCR DPI to [72, 600].
func (c *Config) Validate() error {
	var errs []error

	if c.Extract.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("extract.max_pages must be positive, got %d", c.Extract.MaxPages))
	}
	if c.Extract.MaxCharsPerPage <= 0 {
		errs = append(errs, fmt.Errorf("extract.max_chars_per_page must be positive, got %d", c.Extract.MaxCharsPerPage))
	}
	if c.Extract.MinNativeChars < 0 {
		errs = append(errs, fmt.Errorf("extract.min_native_chars must not be negative, got %d", c.Extract.MinNativeChars))
	}
	if c.Extract.Workers <= 0 {
		c.Extract.Workers = 1
	}
	if c.OCR.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("ocr.max_pages must not be negative, got %d", c.OCR.MaxPages))
	}
	if c.OCR.MaxConcurrent <= 0 {
		c.OCR.MaxConcurrent = 1
	}
	if c.OCR.DPI < 72 {
		c.OCR.DPI = 72
	}
	if c.OCR.DPI > 600 {
		c.OCR.DPI = 600
	}
	switch c.OCR.Engine {
	case OCREngineTesseract, OCREngineGemini:
	default:
		errs = append(errs, fmt.Errorf("ocr.engine must be %q or %q, got %q", OCREngineTesseract, OCREngineGemini, c.OCR.Engine))
	}
	if c.Pipeline.DocumentTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.document_timeout must be positive, got %s", c.Pipeline.DocumentTimeout))
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 1
	}
	if c.Batch.QueueSize <= 0 {
		c.Batch.QueueSize = 1
	}
	if c.Batch.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("batch.max_retries must not be negative, got %d", c.Batch.MaxRetries))
	}
	if c.Artifacts.Dir == "" && c.Artifacts.Bucket == "" {
		errs = append(errs, errors.New("one of artifacts.dir or artifacts.bucket is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func applyEnv(c *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("ARTIFACTS_DIR", &c.Artifacts.Dir)
	str("ARTIFACTS_BUCKET", &c.Artifacts.Bucket)
	str("ARTIFACTS_PREFIX", &c.Artifacts.Prefix)
	flag("ARTIFACTS_GZIP", &c.Artifacts.Gzip)
	flag("ARTIFACTS_INCLUDE_TEXTS", &c.Artifacts.IncludeTexts)

	num("MAX_PAGES", &c.Extract.MaxPages)
	num("MAX_CHARS_PER_PAGE", &c.Extract.MaxCharsPerPage)
	num("MIN_NATIVE_CHARS", &c.Extract.MinNativeChars)
	num("PDF_MAX_WORKERS", &c.Extract.Workers)

	flag("OCR_ENABLED", &c.OCR.Enabled)
	str("OCR_ENGINE", &c.OCR.Engine)
	num("OCR_MAX_PAGES", &c.OCR.MaxPages)
	num("OCR_DPI", &c.OCR.DPI)
	num("OCR_MAX_CONCURRENT", &c.OCR.MaxConcurrent)
	str("TESSERACT_PATH", &c.OCR.TesseractPath)
	str("PDFTOPPM_PATH", &c.OCR.PdftoppmPath)
	str("TESS_LANGS", &c.OCR.TesseractLangs)
	num("TESS_OEM", &c.OCR.TesseractOEM)
	num("TESS_PSM", &c.OCR.TesseractPSM)
	str("GEMINI_MODEL", &c.OCR.GeminiModel)

	dur("DOCUMENT_TIMEOUT", &c.Pipeline.DocumentTimeout)
	flag("MASK_PII", &c.Pipeline.MaskPII)
	str("OWNER_ID", &c.Pipeline.OwnerID)

	num("BATCH_WORKERS", &c.Batch.Workers)
	num("BATCH_QUEUE_SIZE", &c.Batch.QueueSize)
	num("JOB_MAX_RETRIES", &c.Batch.MaxRetries)

	str("BIGQUERY_PROJECT", &c.BigQuery.Project)
	str("BIGQUERY_DATASET", &c.BigQuery.Dataset)

	str("NOTION_TOKEN", &c.Notion.Token)
	str("NOTION_REVIEW_DATABASE_ID", &c.Notion.ReviewDatabaseID)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
