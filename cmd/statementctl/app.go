package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/artifacts"
	"github.com/dvloznov/statement-pipeline/internal/classify"
	"github.com/dvloznov/statement-pipeline/internal/config"
	"github.com/dvloznov/statement-pipeline/internal/extract"
	"github.com/dvloznov/statement-pipeline/internal/gcs"
	infraBQ "github.com/dvloznov/statement-pipeline/internal/infra/bigquery"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/metrics"
	"github.com/dvloznov/statement-pipeline/internal/ocr"
	"github.com/dvloznov/statement-pipeline/internal/pipeline"
	"github.com/dvloznov/statement-pipeline/internal/source"
	"github.com/dvloznov/statement-pipeline/internal/statement"
)

// app holds the configuration and lazily created clients for one command run.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	storage *gcs.Client
	repo    *infraBQ.Repository
}

// newApp loads configuration and builds the logger. The returned context
// carries the logger.
func newApp(ctx context.Context, opts *rootOptions) (context.Context, *app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return ctx, nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}

	log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return ctx, nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	return logger.WithContext(ctx, log), a, nil
}

// Close releases any clients that were opened.
func (a *app) Close() {
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close storage client")
		}
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close BigQuery client")
		}
	}
}

// gcsClient creates the storage client on first use.
func (a *app) gcsClient(ctx context.Context) (*gcs.Client, error) {
	if a.storage == nil {
		c, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		a.storage = c
	}
	return a.storage, nil
}

// reader resolves local paths. A storage client is only created when refs
// contain a gs:// URI.
func (a *app) reader(ctx context.Context, refs []string) *source.Reader {
	needsGCS := false
	for _, ref := range refs {
		if gcs.IsURI(ref) {
			needsGCS = true
			break
		}
	}
	if !needsGCS {
		return source.NewReader(nil)
	}
	c, err := a.gcsClient(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("GCS unavailable, gs:// inputs will fail")
		return source.NewReader(nil)
	}
	return source.NewReader(c)
}

// artifactStore returns the GCS store when a bucket is configured and the
// local store otherwise.
func (a *app) artifactStore(ctx context.Context) (artifacts.Store, error) {
	opts := artifacts.Options{
		Gzip:         a.cfg.Artifacts.Gzip,
		IncludeTexts: a.cfg.Artifacts.IncludeTexts,
	}
	if a.cfg.Artifacts.Bucket != "" {
		c, err := a.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		return artifacts.NewGCSStore(c, a.cfg.Artifacts.Bucket, a.cfg.Artifacts.Prefix, opts), nil
	}
	return artifacts.NewLocalStore(a.cfg.Artifacts.Dir, opts), nil
}

// repository opens the BigQuery repository on first use.
func (a *app) repository(ctx context.Context) (*infraBQ.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	if a.cfg.BigQuery.Project == "" {
		return nil, errors.New("bigquery.project is not configured (STMT_BIGQUERY_PROJECT)")
	}
	repo, err := infraBQ.NewRepository(ctx, a.cfg.BigQuery.Project, a.cfg.BigQuery.Dataset)
	if err != nil {
		return nil, err
	}
	a.repo = repo
	return repo, nil
}

func (a *app) ocrEngine(ctx context.Context) (ocr.Engine, error) {
	if !a.cfg.OCR.Enabled {
		return nil, nil
	}
	switch a.cfg.OCR.Engine {
	case config.OCREngineGemini:
		return ocr.NewGemini(ctx, a.cfg.OCR.GeminiModel)
	default:
		o := a.cfg.OCR
		return ocr.NewTesseract(o.PdftoppmPath, o.TesseractPath, o.TesseractLangs, o.TesseractOEM, o.TesseractPSM), nil
	}
}

// processorOptions are the per-command switches layered on the config.
type processorOptions struct {
	reprocess bool
	persist   bool
	publishBQ bool
	maskPII   bool
}

func (a *app) processor(ctx context.Context, po processorOptions) (*pipeline.Processor, error) {
	engine, err := a.ocrEngine(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating OCR engine: %w", err)
	}

	extractor := extract.New(extract.OpenPDF, engine, extract.Options{
		MaxPages:         a.cfg.Extract.MaxPages,
		MaxCharsPerPage:  a.cfg.Extract.MaxCharsPerPage,
		MinNativeChars:   a.cfg.Extract.MinNativeChars,
		OCREnabled:       a.cfg.OCR.Enabled,
		OCRMaxPages:      a.cfg.OCR.MaxPages,
		OCRDPI:           a.cfg.OCR.DPI,
		OCRMaxConcurrent: a.cfg.OCR.MaxConcurrent,
		Workers:          a.cfg.Extract.Workers,
	})

	options := []pipeline.Option{pipeline.WithMetrics(a.metrics)}
	if po.persist {
		store, err := a.artifactStore(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating artifact store: %w", err)
		}
		options = append(options, pipeline.WithArtifactStore(store))
	}
	if po.publishBQ {
		repo, err := a.repository(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening BigQuery: %w", err)
		}
		options = append(options, pipeline.WithRepository(repo), pipeline.WithRunTracker(repo))
	}

	return pipeline.NewProcessor(
		extractor,
		classify.Default(),
		statement.DefaultRegistry(),
		pipeline.Options{
			DocumentTimeout: a.cfg.Pipeline.DocumentTimeout,
			MaskPII:         a.cfg.Pipeline.MaskPII || po.maskPII,
			Reprocess:       po.reprocess,
			OwnerID:         a.cfg.Pipeline.OwnerID,
		},
		options...,
	), nil
}
