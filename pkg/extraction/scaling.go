package extraction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"bunseki/pkg/chunk"
)

// extractScaled splits the text into BufferSize windows and runs every pass
// over all windows on at most Workers goroutines. Results are merged in pass
// then window order, keeping only spans not already found, so the first pass
// wins. Any window failure fails the whole call.
func (c *Client) extractScaled(ctx context.Context, req Request) ([]Extraction, error) {
	windows := []string{req.Text}
	if req.BufferSize > 0 && chunk.Len(req.Text) > req.BufferSize {
		windows = chunk.Split(req.Text, req.BufferSize)
	}
	passes := max(req.Passes, 1)
	workers := max(req.Workers, 1)

	log.Info("scaled extraction", "kind", req.Kind, "windows", len(windows), "passes", passes, "workers", workers)

	var merged []Extraction
	seen := make(map[string]struct{})

	for pass := range passes {
		results := make([][]Extraction, len(windows))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, w := range windows {
			g.Go(func() error {
				out, err := c.extractOnce(gctx, req, w)
				if err != nil {
					return fmt.Errorf("pass %d window %d: %w", pass+1, i+1, err)
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		added := 0
		for _, window := range results {
			for _, e := range window {
				k := spanKey(e)
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				merged = append(merged, e)
				added++
			}
		}
		log.Debug("scaled pass merged", "kind", req.Kind, "pass", pass+1, "added", added)
	}

	return merged, nil
}

// spanKey identifies an extraction across passes by its span text, or by
// its attributes when the model left the span empty.
func spanKey(e Extraction) string {
	if e.Text != "" {
		return e.Class + "\x00" + e.Text
	}
	bin, _ := json.Marshal(e.Attributes)
	return e.Class + "\x00attrs\x00" + string(bin)
}
