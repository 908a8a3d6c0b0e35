package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a periodic unit of work driven by the scheduler.
type Task func()

type job struct {
	stop chan struct{}
	done chan struct{}
}

// Scheduler runs named periodic tasks. Scheduling a key that is already
// running replaces the old job instead of stacking a second timer, so a
// repeated command only ever changes the interval.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *zap.SugaredLogger
}

// New creates an empty scheduler.
func New(logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// Schedule installs task under key, firing immediately and then once per
// interval. Any job previously registered under the same key is stopped
// and fully drained before the new one starts.
func (s *Scheduler) Schedule(key string, interval time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[key]; ok {
		close(old.stop)
		<-old.done
	}

	j := &job{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.jobs[key] = j
	s.logger.Infow("job scheduled", "key", key, "interval", interval)

	go s.run(j, interval, task)
}

func (s *Scheduler) run(j *job, interval time.Duration, task Task) {
	defer close(j.done)

	// first run fires right away, the ticker covers the rest
	task()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			task()
		case <-j.stop:
			return
		}
	}
}

// Cancel stops the job registered under key, if any. It reports whether
// a job was actually running.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[key]
	if !ok {
		return false
	}
	close(j.stop)
	<-j.done
	delete(s.jobs, key)
	s.logger.Infow("job cancelled", "key", key)
	return true
}

// Stop cancels every job and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, j := range s.jobs {
		close(j.stop)
		<-j.done
		delete(s.jobs, key)
	}
}
