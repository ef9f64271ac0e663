// Package worker runs tile renders on a fixed set of goroutines fed through a
// bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/shirou/gopsutil/v4/cpu"
)

const (
	// DefaultQueueSize is the capacity of the task queue.
	DefaultQueueSize = 32
	// DefaultEmptyTileSize is the byte size of a fully transparent png256 tile.
	DefaultEmptyTileSize = 103
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Renderer renders one tile into a file. Implementations need not be safe
// for concurrent use; every worker owns its own.
type Renderer interface {
	RenderTile(ctx context.Context, coords tile.Coords, path string) error
	Close() error
}

// RendererFactory builds the renderer of one worker.
type RendererFactory func() (Renderer, error)

// Status is the outcome of a task.
type Status int

const (
	StatusRendered Status = iota
	StatusExists
	StatusEmpty
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRendered:
		return "rendered"
	case StatusExists:
		return "exists"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Task represents a single tile render.
type Task struct {
	Coords tile.Coords
	Path   string
	Region string
}

// Result represents the outcome of a task.
type Result struct {
	Task    Task
	Status  Status
	Size    int64
	Err     error
	Elapsed time.Duration
	Worker  int
}

// ResultFunc is called once per task. Calls are serialised.
type ResultFunc func(Result)

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers     int
	QueueSize   int
	NewRenderer RendererFactory

	// DeleteEmpty removes rendered files of exactly EmptyTileSize bytes.
	DeleteEmpty   bool
	EmptyTileSize int64

	OnResult   ResultFunc
	OnProgress ProgressFunc
	Metrics    *Metrics
	Logger     *slog.Logger
}

// DefaultWorkers returns the number of logical cores.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Pool dispatches tasks to workers. Start it, Submit tasks, then Close it
// to wait for the queue to drain.
type Pool struct {
	cfg   Config
	queue chan *Task
	wg    sync.WaitGroup

	reportMu  sync.Mutex
	submitted atomic.Int64
	completed int
	failed    int

	started   bool
	closed    atomic.Bool
	closeOnce sync.Once

	// submitMu orders queue sends against the sentinels sent by Close.
	submitMu sync.Mutex
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.EmptyTileSize <= 0 {
		cfg.EmptyTileSize = DefaultEmptyTileSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}

	return &Pool{
		cfg:   cfg,
		queue: make(chan *Task, cfg.QueueSize),
	}
}

func (p *Pool) log() *slog.Logger {
	if p.cfg.Logger != nil {
		return p.cfg.Logger
	}
	return slog.Default()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.cfg.Workers
}

// Metrics returns the pool's metrics.
func (p *Pool) Metrics() *Metrics {
	return p.cfg.Metrics
}

// Start builds one renderer per worker and starts the workers. If any
// renderer fails to build, the ones already built are closed.
func (p *Pool) Start(ctx context.Context) error {
	if p.started {
		return errors.New("worker pool already started")
	}
	if p.cfg.NewRenderer == nil {
		return errors.New("worker pool needs a renderer factory")
	}

	renderers := make([]Renderer, 0, p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		r, err := p.cfg.NewRenderer()
		if err != nil {
			for _, built := range renderers {
				built.Close() // nolint:errcheck // Already returning an error
			}
			return fmt.Errorf("failed to create renderer for worker %d: %w", i, err)
		}
		renderers = append(renderers, r)
	}

	p.started = true
	for i, r := range renderers {
		p.wg.Add(1)
		go p.worker(ctx, i, r)
	}

	p.log().Debug("Worker pool started", "workers", p.cfg.Workers, "queue", p.cfg.QueueSize)
	return nil
}

// Submit enqueues a task, blocking while the queue is full. It returns the
// context error if ctx is cancelled first; the task is then not queued.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.queue <- &task:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends one sentinel per worker and waits for all of them to exit.
// Tasks queued before Close are still processed (or reported cancelled).
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		// Waits for in-flight sends so no task lands behind a sentinel.
		p.submitMu.Lock()
		p.closed.Store(true)
		p.submitMu.Unlock()

		if !p.started {
			return
		}
		for i := 0; i < p.cfg.Workers; i++ {
			p.queue <- nil
		}
		p.wg.Wait()
		p.log().Debug("Worker pool stopped")
	})
}

// Run submits all tasks, closes the pool and returns one result per
// submitted task. On cancellation, tasks not yet queued get no result.
func (p *Pool) Run(ctx context.Context, tasks []Task) ([]Result, error) {
	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(tasks))
	)
	next := p.cfg.OnResult
	p.cfg.OnResult = func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
		if next != nil {
			next(r)
		}
	}

	if err := p.Start(ctx); err != nil {
		return nil, err
	}

	var submitErr error
	for _, task := range tasks {
		if err := p.Submit(ctx, task); err != nil {
			submitErr = err
			break
		}
	}
	p.Close()

	return results, submitErr
}

func (p *Pool) worker(ctx context.Context, id int, r Renderer) {
	defer p.wg.Done()
	defer func() {
		if err := r.Close(); err != nil {
			p.log().Warn("Failed to close renderer", "worker", id, "error", err)
		}
	}()

	for {
		task := <-p.queue
		if task == nil {
			return
		}

		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Task: *task, Status: StatusCancelled, Err: err}
		} else {
			res = p.process(ctx, r, *task)
		}
		res.Worker = id
		p.report(res)
	}
}

// process skips existing files, renders the rest and removes empty tiles.
func (p *Pool) process(ctx context.Context, r Renderer, task Task) Result {
	start := time.Now()
	res := Result{Task: task}
	fail := func(err error) Result {
		res.Status = StatusFailed
		if ctx.Err() != nil {
			res.Status = StatusCancelled
		}
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}

	info, err := os.Stat(task.Path)
	switch {
	case err == nil:
		res.Status = StatusExists
		res.Size = info.Size()
		return res
	case !errors.Is(err, fs.ErrNotExist):
		return fail(fmt.Errorf("failed to stat %s: %w", task.Path, err))
	}

	if err := os.MkdirAll(filepath.Dir(task.Path), 0o755); err != nil {
		return fail(fmt.Errorf("failed to create tile directory: %w", err))
	}

	if err := r.RenderTile(ctx, task.Coords, task.Path); err != nil {
		return fail(err)
	}
	res.Elapsed = time.Since(start)

	info, err = os.Stat(task.Path)
	if err != nil {
		return fail(fmt.Errorf("rendered tile missing: %w", err))
	}
	res.Size = info.Size()
	res.Status = StatusRendered

	if p.cfg.DeleteEmpty && info.Size() == p.cfg.EmptyTileSize {
		if err := os.Remove(task.Path); err != nil {
			return fail(fmt.Errorf("failed to delete empty tile: %w", err))
		}
		res.Status = StatusEmpty
	}
	return res
}

// report serialises result handling across workers.
func (p *Pool) report(res Result) {
	p.reportMu.Lock()
	defer p.reportMu.Unlock()

	p.cfg.Metrics.Observe(res)

	p.completed++
	if res.Status == StatusFailed {
		p.failed++
		p.log().Warn("Tile failed", "tile", res.Task.Coords.String(), "region", res.Task.Region, "error", res.Err)
	}

	if p.cfg.OnResult != nil {
		p.cfg.OnResult(res)
	}
	if p.cfg.OnProgress != nil {
		p.cfg.OnProgress(p.completed, int(p.submitted.Load()), p.failed)
	}
}
