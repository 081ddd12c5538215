package tracing

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/negentropy-ai/engine/pkg/models"
)

const (
	defaultBatchSize     = 512
	defaultFlushInterval = 5 * time.Second
	defaultQueueCapacity = 4096
)

// Sink receives finished span batches. Export errors are logged and dropped:
// telemetry loss is acceptable and must never block the hot path.
type Sink interface {
	Export(ctx context.Context, spans []*models.Span) error
	Name() string
}

// Exporter drains an in-memory bounded queue and flushes batches to every
// configured sink, on size or interval, whichever comes first.
type Exporter struct {
	queue         chan *models.Span
	sinks         []Sink
	batchSize     int
	flushInterval time.Duration
	log           *slog.Logger
	dropped       atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ExporterOptions sizes the exporter; zero values take the defaults.
type ExporterOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueCapacity int
}

func NewExporter(opts ExporterOptions, sinks []Sink, log *slog.Logger) *Exporter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	return &Exporter{
		queue:         make(chan *models.Span, opts.QueueCapacity),
		sinks:         sinks,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		log:           log,
		stopCh:        make(chan struct{}),
	}
}

// Enqueue offers a span without ever blocking the caller. When the queue is
// full the oldest queued span is dropped to make room.
func (e *Exporter) Enqueue(sp *models.Span) {
	for {
		select {
		case e.queue <- sp:
			return
		default:
		}
		select {
		case old := <-e.queue:
			n := e.dropped.Add(1)
			if e.log != nil {
				e.log.Warn("span queue full, dropped oldest span",
					"operation", old.OperationName, "dropped_total", n)
			}
		default:
		}
	}
}

// Dropped reports how many spans have been dropped to backpressure.
func (e *Exporter) Dropped() int64 { return e.dropped.Load() }

// Start launches the background flush loop.
func (e *Exporter) Start() {
	e.wg.Add(1)
	go e.run()
}

// Stop flushes everything still queued and waits for the loop to exit.
func (e *Exporter) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Exporter) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	batch := make([]*models.Span, 0, e.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		e.export(batch)
		batch = batch[:0]
	}

	for {
		select {
		case sp := <-e.queue:
			batch = append(batch, sp)
			if len(batch) >= e.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-e.stopCh:
			for {
				select {
				case sp := <-e.queue:
					batch = append(batch, sp)
					if len(batch) >= e.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (e *Exporter) export(batch []*models.Span) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, sink := range e.sinks {
		if err := sink.Export(ctx, batch); err != nil && e.log != nil {
			e.log.Warn("span export failed", "sink", sink.Name(), "spans", len(batch), "error", err)
		}
	}
}
