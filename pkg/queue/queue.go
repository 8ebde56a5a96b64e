// Package queue runs extraction jobs one at a time in submission order.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"

	"bunseki/pkg/extractor"
	"bunseki/pkg/schema"
	"bunseki/pkg/utils"
)

var (
	ErrFull     = errors.New("queue is full")
	ErrStopped  = errors.New("queue is stopped")
	ErrNotFound = errors.New("job not found")
)

type State string

const (
	Queued  State = "queued"
	Running State = "running"
	Done    State = "done"
	Failed  State = "failed"
)

// Request names a catalog work or carries raw text. Text wins when both are
// set.
type Request struct {
	Work string `json:"work,omitempty"`
	Text string `json:"text,omitempty"`
}

type Job struct {
	ID         string            `json:"id"`
	Request    Request           `json:"-"`
	State      State             `json:"state"`
	Error      string            `json:"error,omitempty"`
	Batch      *schema.Batch     `json:"batch,omitempty"`
	Report     *extractor.Report `json:"report,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Runner does the work of one job.
type Runner func(ctx context.Context, req Request) (schema.Batch, *extractor.Report, error)

type Queue struct {
	run   Runner
	items chan string
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	started atomic.Bool

	mu   sync.RWMutex
	jobs map[string]*Job
}

// New returns a queue holding at most size waiting jobs.
func New(run Runner, size int) *Queue {
	return &Queue{
		run:   run,
		items: make(chan string, size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		jobs:  make(map[string]*Job),
	}
}

func (q *Queue) Start(ctx context.Context) {
	if q.started.CompareAndSwap(false, true) {
		go q.processLoop(ctx)
	}
}

// Stop ends the loop after the running job and waits for it.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stop) })
	if q.started.Load() {
		<-q.done
	}
}

// Add enqueues req and returns the job id.
func (q *Queue) Add(req Request) (string, error) {
	select {
	case <-q.stop:
		return "", ErrStopped
	default:
	}

	job := &Job{
		ID:        ksuid.New().String(),
		Request:   req,
		State:     Queued,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	select {
	case q.items <- job.ID:
		return job.ID, nil
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		q.mu.Unlock()
		return "", ErrFull
	}
}

// Get returns a snapshot of the job.
func (q *Queue) Get(id string) (Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

func (q *Queue) processLoop(ctx context.Context) {
	defer close(q.done)
	log.Info("job queue started")
	for {
		select {
		case <-q.stop:
			log.Info("job queue stopped")
			return
		case <-ctx.Done():
			log.Info("job queue stopped", "reason", ctx.Err())
			return
		case id := <-q.items:
			q.processItem(ctx, id)
		}
	}
}

func (q *Queue) processItem(ctx context.Context, id string) {
	now := time.Now()
	q.mu.Lock()
	job := q.jobs[id]
	job.State = Running
	job.StartedAt = &now
	req := job.Request
	q.mu.Unlock()

	log.Info("processing job", "id", id, "work", req.Work, "text", utils.LimitStr(req.Text, 20))

	batch, report, err := q.run(ctx, req)

	finished := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	job.FinishedAt = &finished
	job.Report = report
	if err != nil {
		log.Error("job failed", "id", id, "error", err)
		job.State = Failed
		job.Error = err.Error()
		return
	}
	job.State = Done
	job.Batch = &batch
	log.Info("job finished", "id", id, "characters", len(batch.Characters), "emotions", len(batch.Emotions), "relationships", len(batch.Relationships))
}
