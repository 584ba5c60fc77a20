package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"contractqa/internal/archive"
	"contractqa/internal/chunker"
	"contractqa/internal/domain"
	"contractqa/internal/embedding"
	"contractqa/internal/embedding/gemini"
	"contractqa/internal/embedding/openai"
	"contractqa/internal/embedding/tfidf"
	"contractqa/internal/index"
	"contractqa/internal/loader"
	"contractqa/internal/metrics"
	"contractqa/internal/service"
	"contractqa/internal/synthesis"
)

// app holds the assembled pipeline and whatever must be released on exit.
type app struct {
	pipeline *service.Pipeline
	metrics  *metrics.Metrics
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn().Err(err).Msg("Close failed")
		}
	}
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{metrics: metrics.New()}

	emb, embedTimeout, err := newEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	synth, err := newSynthesizer(ctx)
	if err != nil {
		return nil, err
	}
	arc, err := a.newArchive(ctx)
	if err != nil {
		return nil, err
	}

	rec := archive.NewRecorder(arc, cfg.Archive.Prefix, 30*time.Second, logger)
	ld := loader.New(logger, loader.WithObserver(rec), loader.WithReporter(a.metrics))

	indexOpts := []index.Option{index.WithRecorder(a.metrics), index.WithEmbedTimeout(embedTimeout)}
	if o := cfg.Embedder.OpenAI; o != nil && o.BatchSize > 0 {
		indexOpts = append(indexOpts, index.WithBatchSize(o.BatchSize))
	}
	engine := index.NewEngine(emb, cfg.VectorStore, logger, indexOpts...)

	a.pipeline = service.NewPipeline(
		ld,
		chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		engine,
		synth,
		logger,
		service.WithArchiveLog(rec),
		service.WithMetrics(a.metrics),
		service.WithSynthesisTimeout(seconds(cfg.Synthesizer.TimeoutSecs)),
	)
	return a, nil
}

func newEmbedder(ctx context.Context) (domain.Embedder, time.Duration, error) {
	ec := cfg.Embedder
	switch ec.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), 0, nil
	case "gemini":
		g := ec.Gemini
		client, err := gemini.NewClient(ctx, gemini.Config{APIKeyEnv: g.APIKeyEnv, Model: ec.Model, Dimension: g.Dimension})
		if err != nil {
			return nil, 0, fmt.Errorf("gemini embedder: %w", err)
		}
		return client, seconds(g.TimeoutSecs), nil
	case "openai", "":
		o := ec.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      ec.Model,
			Timeout:    seconds(o.TimeoutSecs),
			MaxRetries: o.MaxRetries,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("openai embedder: %w", err)
		}
		return embedding.NewLimited(client, o.RequestsPerSecond), seconds(o.TimeoutSecs), nil
	default:
		return nil, 0, fmt.Errorf("unknown embedder: %s", ec.Type)
	}
}

func newSynthesizer(ctx context.Context) (domain.Synthesizer, error) {
	sc := cfg.Synthesizer
	extractive := synthesis.NewExtractive(sc.MaxSentences)
	if sc.Type == "extractive" || sc.Type == "" {
		return extractive, nil
	}

	key := os.Getenv(sc.APIKeyEnv)
	if key == "" {
		logger.Warn().Str("synthesizer", sc.Type).Str("env", sc.APIKeyEnv).Msg("API key not set, using extractive answers")
		return extractive, nil
	}

	var (
		s   domain.Synthesizer
		err error
	)
	switch sc.Type {
	case "openai":
		s, err = synthesis.NewOpenAI(synthesis.OpenAIConfig{
			APIKey:      key,
			BaseURL:     sc.BaseURL,
			Model:       sc.Model,
			Temperature: sc.Temperature,
			MaxTokens:   sc.MaxTokens,
			Timeout:     seconds(sc.TimeoutSecs),
		})
	case "claude":
		s, err = synthesis.NewClaude(synthesis.ClaudeConfig{
			APIKey:      key,
			BaseURL:     sc.BaseURL,
			Model:       sc.Model,
			Temperature: sc.Temperature,
			MaxTokens:   sc.MaxTokens,
			Timeout:     seconds(sc.TimeoutSecs),
		})
	case "gemini":
		s, err = synthesis.NewGemini(ctx, synthesis.GeminiConfig{
			APIKey:      key,
			Model:       sc.Model,
			Temperature: sc.Temperature,
			MaxTokens:   sc.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown synthesizer: %s", sc.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s synthesizer: %w", sc.Type, err)
	}
	return s, nil
}

func (a *app) newArchive(ctx context.Context) (archive.Archive, error) {
	ac := cfg.Archive
	switch ac.Type {
	case "none", "":
		return archive.Nop{}, nil
	case "dir":
		if ac.Dir == "" {
			return nil, fmt.Errorf("archive type dir requires archive.dir")
		}
		return archive.NewDir(ac.Dir), nil
	case "badger":
		b, err := archive.OpenBadger(ac.Dir)
		if err != nil {
			return nil, fmt.Errorf("open badger archive: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	case "s3":
		if ac.Bucket == "" {
			logger.Warn().Msg("S3 archive selected without a bucket, uploads are not kept")
			return archive.Nop{}, nil
		}
		s, err := archive.NewS3(ctx, ac.Bucket, ac.Region)
		if err != nil {
			return nil, fmt.Errorf("s3 archive: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown archive: %s", ac.Type)
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// closeIndex removes the run's corpus from its store once the command ends.
func closeIndex(r *index.Retriever) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = r.Close(ctx)
}
