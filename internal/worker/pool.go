package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/metrics"
	"github.com/jonesrussell/north-cloud/enrichment/internal/queue"
)

// idleBackoff is how long a worker sleeps after an empty or failed read
// before polling the queue again.
const idleBackoff = time.Second

// MessageSource is the queue consumption surface for the pool.
type MessageSource interface {
	Read(ctx context.Context) ([]*queue.ConsumedMessage, error)
	Acknowledge(ctx context.Context, msg *queue.ConsumedMessage) error
}

// Pool runs a fixed number of workers that pull job messages and hand
// them to the processor. Messages are acknowledged only after the
// processor returns nil, so a crashed worker's jobs get redelivered.
type Pool struct {
	source      MessageSource
	processor   *Processor
	logger      logger.Logger
	metrics     *metrics.Metrics
	concurrency int

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPool creates a worker pool with the given concurrency. m may be nil.
func NewPool(source MessageSource, processor *Processor, log logger.Logger, m *metrics.Metrics, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		source:      source,
		processor:   processor,
		logger:      log,
		metrics:     m,
		concurrency: concurrency,
	}
}

// Start launches the workers. Safe to call once; subsequent calls error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	p.started = true
	p.stopChan = make(chan struct{})

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}

	p.logger.Info("worker pool started", logger.Int("concurrency", p.concurrency))
	return nil
}

// Stop signals all workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.With(logger.Int("worker", id))

	for {
		select {
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		messages, err := p.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("queue read failed", logger.Error(err))
			p.sleep(idleBackoff)
			continue
		}
		if len(messages) == 0 {
			continue
		}

		if p.metrics != nil {
			p.metrics.ActiveWorkers.Inc()
		}
		for _, msg := range messages {
			if err := p.processor.Process(ctx, msg); err != nil {
				// Leave unacknowledged; the message is redelivered after
				// the pending idle threshold.
				log.Error("job processing failed, leaving message pending",
					logger.String("job_id", msg.Message.JobID),
					logger.Error(err))
				continue
			}
			if err := p.source.Acknowledge(ctx, msg); err != nil {
				log.Warn("acknowledge failed",
					logger.String("job_id", msg.Message.JobID),
					logger.Error(err))
			}
		}
		if p.metrics != nil {
			p.metrics.ActiveWorkers.Dec()
		}
	}
}

func (p *Pool) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-p.stopChan:
	}
}
