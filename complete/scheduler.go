package complete

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSettle is how long a follow-up waits so the response carrying the
// (empty) completion list reaches the editor first.
const DefaultSettle = 10 * time.Millisecond

const schedulerQueueSize = 16

type job struct {
	ctx     context.Context
	task    Task
	abandon func()
}

// drop runs the abandon hook of a job that will never run.
func (j job) drop() {
	if j.abandon != nil {
		j.abandon()
	}
}

// Scheduler runs follow-up tasks one at a time on a single worker, each after
// a short settle delay. Posting never blocks.
type Scheduler struct {
	settle time.Duration
	logger *zap.SugaredLogger

	mu      sync.Mutex
	queue   chan job
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler and starts its worker.
func NewScheduler(settle time.Duration, log *zap.SugaredLogger) *Scheduler {
	if settle < 0 {
		settle = 0
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Scheduler{
		settle: settle,
		logger: log,
		queue:  make(chan job, schedulerQueueSize),
		stop:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Post queues task. It is dropped if ctx is done before the task runs, if
// the queue is full, or if the scheduler is stopped.
func (s *Scheduler) Post(ctx context.Context, task Task) bool {
	return s.PostOrAbandon(ctx, task, nil)
}

// PostOrAbandon is Post with a hook called exactly once if task is dropped
// instead of run, including when it is rejected here.
func (s *Scheduler) PostOrAbandon(ctx context.Context, task Task, abandon func()) bool {
	if task == nil {
		return false
	}
	j := job{ctx: ctx, task: task, abandon: abandon}
	if !s.enqueue(j) {
		j.drop()
		return false
	}
	return true
}

func (s *Scheduler) enqueue(j job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	select {
	case s.queue <- j:
		return true
	default:
		s.logger.Warnw("Follow-up queue full, dropping task", "queue_size", schedulerQueueSize)
		return false
	}
}

// Stop discards pending tasks and waits for the worker to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()

	// Nothing enqueues once stopped
	for {
		select {
		case j := <-s.queue:
			j.drop()
		default:
			return
		}
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case j := <-s.queue:
			timer.Reset(s.settle)
			select {
			case <-s.stop:
				j.drop()
				return
			case <-j.ctx.Done():
				timer.Stop()
				s.logger.Debugw("Follow-up dropped, request cancelled")
				j.drop()
				continue
			case <-timer.C:
			}
			s.execute(j)
		}
	}
}

func (s *Scheduler) execute(j job) {
	if j.ctx.Err() != nil {
		j.drop()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Panic in follow-up task", "panic", r)
		}
	}()
	j.task(j.ctx)
}
