package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	JobStoreKeepAlive = "store_keepalive"
	JobAuditRetention = "audit_retention"
)

// Run is the unit of work a job performs.
type Run func(context.Context) error

type Status struct {
	Job      string    `json:"job"`
	LastRun  time.Time `json:"lastRun"`
	LastErr  string    `json:"lastError,omitempty"`
	Runs     uint64    `json:"runs"`
	Failures uint64    `json:"failures"`
}

type schedule struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	run      Run
}

// Service runs named jobs on fixed intervals and keeps the outcome of the
// latest run of each.
type Service struct {
	logger    *slog.Logger
	schedules []schedule

	mu     sync.Mutex
	status map[string]*Status
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, status: map[string]*Status{}}
}

// Every registers run under name. A non-positive interval disables the job.
func (s *Service) Every(name string, interval, timeout time.Duration, run Run) {
	if interval <= 0 {
		return
	}
	s.schedules = append(s.schedules, schedule{name: name, interval: interval, timeout: timeout, run: run})
}

// Start launches one goroutine per registered job. They stop when ctx ends.
func (s *Service) Start(ctx context.Context) {
	for _, sched := range s.schedules {
		s.wg.Add(1)
		go s.loop(ctx, sched)
	}
}

// Wait blocks until every job goroutine has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) RunNow(ctx context.Context, name string, run Run) error {
	return s.runJob(ctx, schedule{name: name, run: run})
}

func (s *Service) loop(ctx context.Context, sched schedule) {
	defer s.wg.Done()
	ticker := time.NewTicker(sched.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runJob(ctx, sched); err != nil {
				s.logger.Warn("job run failed", "job", sched.name, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, sched schedule) error {
	if sched.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sched.timeout)
		defer cancel()
	}
	err := sched.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[sched.name]
	if !ok {
		st = &Status{Job: sched.name}
		s.status[sched.name] = st
	}
	st.LastRun = time.Now().UTC()
	st.Runs++
	st.LastErr = ""
	if err != nil {
		st.Failures++
		st.LastErr = err.Error()
	}
	return err
}

// Statuses returns a copy of every job's latest outcome.
func (s *Service) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	return out
}
