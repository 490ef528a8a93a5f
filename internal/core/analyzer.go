package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veritasai/veritas/internal/config"
	"github.com/veritasai/veritas/internal/core/demo"
	"github.com/veritasai/veritas/internal/core/extraction"
	"github.com/veritasai/veritas/internal/core/model"
	"github.com/veritasai/veritas/internal/core/overlap"
	"github.com/veritasai/veritas/internal/llm"
)

// Analyzer owns the map-analysis pipeline: fan out one extraction call per
// uploaded file, join the batches in file order, then annotate overlaps.
// It also serves the mode-based text analysis of the sibling product.
type Analyzer struct {
	LLM       llm.LLMClient
	Extractor *extraction.Extractor
	Config    *config.Config
	Logger    *zap.Logger
}

func NewAnalyzer(llmClient llm.LLMClient, cfg *config.Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}

	ex := extraction.NewExtractor(llmClient, cfg.Prompts.MapExtraction)
	ex.Temperature = cfg.LLM.Temperature

	return &Analyzer{
		LLM:       llmClient,
		Extractor: ex,
		Config:    cfg,
		Logger:    logger,
	}
}

// NewAnalyzerFromConfig builds the provider client and retry policy from
// configuration. In demo mode no provider client is built at all; the
// analyzer serves the bundled dataset instead.
func NewAnalyzerFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Analyzer, error) {
	var client llm.LLMClient
	if !cfg.DemoMode() {
		raw, err := llm.NewClient(ctx, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize llm client: %w", err)
		}
		client = llm.NewRetryClient(raw, llm.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			Backoff:    time.Duration(cfg.Retry.BackoffSeconds) * time.Second,
		}, logger)
	}
	return NewAnalyzer(client, cfg, logger), nil
}

// AnalyzeMaps extracts partitions from every file and returns the annotated
// batch. The second return value reports whether the bundled demo dataset
// was served instead of real extraction output, which happens when no
// provider is configured or when extraction fails and the demo fallback is
// enabled. Cancellation is never masked by the fallback.
func (a *Analyzer) AnalyzeMaps(ctx context.Context, files []model.MapFile) (model.AnalysisResult, bool, error) {
	if len(files) == 0 {
		return model.AnalysisResult{}, false, fmt.Errorf("no files to analyze")
	}

	if a.Config.DemoMode() {
		a.Logger.Info("no llm provider configured, serving demo dataset")
		return a.demoResult(), true, nil
	}

	batches := make([][]model.SurveyPartition, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if limit := a.Config.Concurrency.MapExtraction; limit > 0 {
		g.SetLimit(limit)
	}

	for i, f := range files {
		g.Go(func() error {
			parts, err := a.Extractor.ExtractPartitions(gctx, f)
			if err != nil {
				return fmt.Errorf("extraction failed for %s: %w", f.Name, err)
			}
			batches[i] = parts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return model.AnalysisResult{}, false, ctx.Err()
		}
		if !a.Config.Demo.Enabled {
			return model.AnalysisResult{}, false, err
		}
		a.Logger.Warn("extraction failed, serving demo dataset", zap.Error(err))
		return a.demoResult(), true, nil
	}

	var result model.AnalysisResult
	for _, batch := range batches {
		result.Partitions = append(result.Partitions, batch...)
	}

	result.Partitions = overlap.Resolve(result.Partitions)

	a.Logger.Info("map analysis complete",
		zap.Int("files", len(files)),
		zap.Int("partitions", len(result.Partitions)))
	return result, false, nil
}

// AnalyzeText runs the system prompt registered for mode against the given
// text. When fn is non-nil the output is streamed through it cumulatively;
// the returned string is the final text either way.
func (a *Analyzer) AnalyzeText(ctx context.Context, mode string, text string, fn llm.StreamFunc) (string, error) {
	system, ok := a.Config.Prompts.Modes[mode]
	if !ok {
		return "", fmt.Errorf("unknown analysis mode %q (have: %s)", mode, strings.Join(a.Modes(), ", "))
	}

	if a.Config.DemoMode() {
		return "", fmt.Errorf("no llm provider configured: set an api key or point at a local ollama")
	}

	req := llm.Request{
		System:      system,
		Prompt:      text,
		Temperature: a.Config.LLM.Temperature,
	}

	if fn == nil {
		return a.LLM.Generate(ctx, req)
	}
	return a.LLM.GenerateStream(ctx, req, fn)
}

// Modes lists the configured text-analysis modes, sorted.
func (a *Analyzer) Modes() []string {
	modes := make([]string, 0, len(a.Config.Prompts.Modes))
	for name := range a.Config.Prompts.Modes {
		modes = append(modes, name)
	}
	sort.Strings(modes)
	return modes
}

func (a *Analyzer) demoResult() model.AnalysisResult {
	return model.AnalysisResult{Partitions: overlap.Resolve(demo.Partitions())}
}
