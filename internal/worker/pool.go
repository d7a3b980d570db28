package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ducdigital/fairy-go/internal/config"
	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/metrics"
	"github.com/ducdigital/fairy-go/internal/queue"
)

// State represents the worker pool's current operational state
type State int

const (
	StateIdle         State = iota // Not processing, waiting to start
	StateBusy                      // Actively processing
	StatePaused                    // Temporarily stopped, can resume
	StateShuttingDown              // Gracefully stopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StatePaused:
		return "paused"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Pool runs N goroutines, each driving its own instance of the §4.2/§4.3
// poll/process/retry loop against one Queue+handler binding. Groups never
// stick to a particular goroutine: whichever goroutine next calls Poll
// picks up the next available group head, so cross-group parallelism comes
// from having Concurrency goroutines racing Poll, not from partitioning
// groups across workers.
type Pool struct {
	id           string
	q            *queue.Queue
	executor     *Executor
	heartbeat    *Heartbeat
	redisClient  *redis.Client
	config       *config.WorkerConfig
	state        State
	stateMu      sync.RWMutex
	activeCount  int64
	activeGroups sync.Map
	wg           sync.WaitGroup
	stopCh       chan struct{}
	pauseCh      chan struct{}
	resumeCh     chan struct{}
}

// NewPool creates a worker pool running handler against q. redisClient
// backs the heartbeat/pause keys, independent of q's own store.
func NewPool(cfg *config.WorkerConfig, q *queue.Queue, handler queue.Handler, handlerTimeout time.Duration, redisClient *redis.Client) *Pool {
	workerID := cfg.ID
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Pool{
		id:          workerID,
		q:           q,
		executor:    NewExecutor(handler, handlerTimeout),
		heartbeat:   NewHeartbeat(redisClient, workerID, cfg.HeartbeatInterval, cfg.HeartbeatTimeout, q.Publisher()),
		redisClient: redisClient,
		config:      cfg,
		state:       StateIdle,
		stopCh:      make(chan struct{}),
		pauseCh:     make(chan struct{}),
		resumeCh:    make(chan struct{}),
	}
}

// Start begins the worker pool, spawning worker goroutines.
func (p *Pool) Start(ctx context.Context) error {
	p.stateMu.Lock()
	p.state = StateBusy
	p.stateMu.Unlock()

	p.heartbeat.Start(ctx)
	p.heartbeat.UpdateConcurrency(p.config.Concurrency)

	for i := 0; i < p.config.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	metrics.SetActiveWorkers(float64(p.config.Concurrency))

	logger.Info().
		Str("worker_id", p.id).
		Str("queue", p.q.Name()).
		Int("concurrency", p.config.Concurrency).
		Msg("worker pool started")

	return nil
}

// Stop gracefully stops the worker pool, waiting for in-flight groups to
// reach a drain point (Queue.Run only returns between groups, never
// mid-handler-invocation).
func (p *Pool) Stop(ctx context.Context) error {
	p.stateMu.Lock()
	p.state = StateShuttingDown
	p.stateMu.Unlock()

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Str("worker_id", p.id).Msg("worker pool stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		logger.Warn().Str("worker_id", p.id).Msg("worker pool shutdown timed out")
	case <-ctx.Done():
		logger.Warn().Str("worker_id", p.id).Msg("worker pool shutdown canceled")
	}

	p.heartbeat.Stop()
	metrics.SetActiveWorkers(0)

	return nil
}

// Pause temporarily stops workers from polling for new groups.
func (p *Pool) Pause() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if p.state == StateBusy {
		p.state = StatePaused
		close(p.pauseCh)
		p.pauseCh = make(chan struct{})
		logger.Info().Str("worker_id", p.id).Msg("worker pool paused")
	}
}

// Resume continues polling after a pause.
func (p *Pool) Resume() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if p.state == StatePaused {
		p.state = StateBusy
		close(p.resumeCh)
		p.resumeCh = make(chan struct{})
		logger.Info().Str("worker_id", p.id).Msg("worker pool resumed")
	}
}

// State returns the current worker pool state.
func (p *Pool) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// ID returns the worker pool's unique identifier.
func (p *Pool) ID() string { return p.id }

// ActiveGroups returns the count of groups currently being drained by this
// pool's goroutines.
func (p *Pool) ActiveGroups() int {
	return int(atomic.LoadInt64(&p.activeCount))
}

// activeGroupNames returns the sorted group ids currently being drained,
// for the heartbeat's worker info.
func (p *Pool) activeGroupNames() []string {
	names := make([]string, 0)
	p.activeGroups.Range(func(k, v interface{}) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// worker is the main loop for one goroutine: poll a group head, drain it
// to completion or blockage, then poll again.
func (p *Pool) worker(ctx context.Context, workerNum int) {
	defer p.wg.Done()

	log := logger.WithWorker(p.id)
	log.Info().Int("worker_num", workerNum).Str("queue", p.q.Name()).Msg("worker started")

	handler := p.executor.Handler(p.id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		if p.State() == StatePaused {
			select {
			case <-p.resumeCh:
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		if paused, _ := IsWorkerPaused(ctx, p.redisClient, p.id); paused {
			select {
			case <-time.After(time.Second):
				continue
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		inv, err := p.q.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("poll failed")
			continue
		}

		atomic.AddInt64(&p.activeCount, 1)
		p.activeGroups.Store(inv.Group(), struct{}{})
		p.heartbeat.UpdateActiveGroups(p.activeGroupNames())

		if err := p.q.Run(ctx, inv, handler); err != nil {
			log.Error().Err(err).Msg("run failed")
		}

		atomic.AddInt64(&p.activeCount, -1)
		p.activeGroups.Delete(inv.Group())
		p.heartbeat.UpdateActiveGroups(p.activeGroupNames())
	}
}
