package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"bunseki/pkg/aozora"
	"bunseki/pkg/config"
	"bunseki/pkg/diff"
	"bunseki/pkg/extraction"
	"bunseki/pkg/extractor"
	"bunseki/pkg/inference"
	"bunseki/pkg/report"
	"bunseki/pkg/schema"
	"bunseki/pkg/storage"
)

func newExtractor(ctx context.Context, cfg *config.Config) (*extractor.Extractor, error) {
	inf, err := inference.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return extractor.New(cfg.Extract, extraction.New(inf, cfg.Model)), nil
}

func analyze(ctx context.Context, cfg *config.Config, title string, save bool, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ex, err := newExtractor(ctx, cfg)
	if err != nil {
		return err
	}

	log.Info("analyzing", "work", title, "model", cfg.Model)
	text, err := aozora.NewFetcher(cfg.Fetch).Fetch(ctx, title)
	if err != nil {
		return err
	}

	batch, run, err := ex.ExtractAll(ctx, text)
	if err != nil {
		return err
	}
	logRun(run)

	if save {
		if err := persist(ctx, cfg, title, batch, run, out); err != nil {
			return err
		}
	}

	report.PrintCLI(out, batch)
	return nil
}

func logRun(run *extractor.Report) {
	log.Info("extraction finished", "run", run.RunID, "strategy", run.Strategy, "chunks", run.Chunks, "took", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	if run.Fallback != "" {
		log.Warn("scaled extraction fell back to chunks", "reason", run.Fallback)
	}
	for _, u := range run.Lost() {
		log.Warn("no records for unit", "chunk", u.Chunk, "kind", u.Kind, "reason", u.Reason)
	}
}

// persist saves the run, prints what changed since the previous run and
// mirrors the files to S3 when a bucket is configured.
func persist(ctx context.Context, cfg *config.Config, title string, batch schema.Batch, run *extractor.Report, out io.Writer) error {
	prev, hadPrev, err := report.LoadPrevious(cfg.ResultsDir, title)
	if err != nil {
		log.Warn("ignoring previous results", "error", err)
	}

	saved, err := report.Save(cfg.ResultsDir, title, batch, run)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "結果を保存しました: %s\n", saved.Dir)

	if hadPrev {
		fmt.Fprintln(out, "\n前回の結果との差分:")
		diff.Batches(prev.Batch(), batch).Print(out)
	}

	mirror, err := storage.New(ctx, cfg.S3)
	if err != nil {
		return err
	}
	if mirror != nil {
		if _, err := mirror.Upload(ctx, saved.Dir, saved.Files); err != nil {
			return err
		}
	}
	return nil
}
