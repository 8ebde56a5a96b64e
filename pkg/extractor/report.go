package extractor

import (
	"time"

	"github.com/segmentio/ksuid"

	"bunseki/pkg/schema"
)

type Strategy string

const (
	StrategyDirect  Strategy = "direct"
	StrategyScaled  Strategy = "scaled"
	StrategyChunked Strategy = "chunked"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
)

// Unit is the outcome of one record kind over one piece of text. Chunk is
// 1-based in chunked mode and 0 when the whole text was used.
type Unit struct {
	Chunk   int         `json:"chunk"`
	Kind    schema.Kind `json:"kind"`
	Status  Status      `json:"status"`
	Reason  string      `json:"reason,omitempty"`
	Records int         `json:"records"`
}

// Report records how a document was processed and which units lost data.
type Report struct {
	RunID      string    `json:"run_id"`
	Strategy   Strategy  `json:"strategy"`
	Chunks     int       `json:"chunks"`
	Fallback   string    `json:"fallback,omitempty"`
	Units      []Unit    `json:"units"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func newReport() *Report {
	return &Report{
		RunID:     ksuid.New().String(),
		StartedAt: time.Now(),
	}
}

func (r *Report) add(u Unit) {
	r.Units = append(r.Units, u)
}

// Lost lists the units that contributed nothing.
func (r *Report) Lost() []Unit {
	var out []Unit
	for _, u := range r.Units {
		if u.Status == StatusSkipped {
			out = append(out, u)
		}
	}
	return out
}

// ChunkStatus folds the units of chunk n: success when every kind succeeded,
// skipped when none did, partial otherwise.
func (r *Report) ChunkStatus(n int) Status {
	var success, skipped, total int
	for _, u := range r.Units {
		if u.Chunk != n {
			continue
		}
		total++
		switch u.Status {
		case StatusSuccess:
			success++
		case StatusSkipped:
			skipped++
		}
	}
	switch {
	case skipped == total:
		return StatusSkipped
	case success == total:
		return StatusSuccess
	}
	return StatusPartial
}
