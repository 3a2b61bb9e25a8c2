// Package scheduler runs named jobs once at a given time or on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"reputation-bot/platform"
	"reputation-bot/utils"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// JobFunc handles one firing of a job.
type JobFunc func(ctx context.Context, job platform.Job) error

type entry struct {
	job      platform.Job
	timer    *time.Timer
	cronID   cron.EntryID
	schedule cron.Schedule
}

// Scheduler implements platform.Scheduler in process.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	handlers map[string]JobFunc
	entries  map[string]*entry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	now      func() time.Time
}

// New creates a stopped scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		handlers: make(map[string]JobFunc),
		entries:  make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Register binds a job name to its handler. It must be called before jobs with that name are scheduled.
func (s *Scheduler) Register(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = fn
}

// Start begins running cron jobs. One-off jobs run as soon as they are due.
func (s *Scheduler) Start() {
	log.Println("Initializing scheduler...")
	s.cron.Start()
}

// Stop halts cron jobs, drops pending one-off jobs and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	for id, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.entries, id)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Println("Scheduler stopped.")
}

// RunAt schedules a one-off job. Times in the past run immediately.
func (s *Scheduler) RunAt(ctx context.Context, name string, at time.Time, data map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[name]; !ok {
		return "", fmt.Errorf("no handler registered for job %s", name)
	}

	id := uuid.NewString()
	job := platform.Job{ID: id, Name: name, RunAt: at, Data: copyData(data)}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.entries[id] = &entry{
		job:   job,
		timer: time.AfterFunc(delay, func() { s.fire(id) }),
	}
	return id, nil
}

// RunCron schedules a recurring job with a standard five field expression, evaluated in UTC.
func (s *Scheduler) RunCron(ctx context.Context, name, expr string) (string, error) {
	schedule, err := cron.ParseStandard("CRON_TZ=UTC " + expr)
	if err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[name]; !ok {
		return "", fmt.Errorf("no handler registered for job %s", name)
	}

	id := uuid.NewString()
	job := platform.Job{ID: id, Name: name, Cron: expr}
	cronID := s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.mu.Lock()
		e, ok := s.entries[id]
		s.mu.Unlock()
		if ok {
			s.run(e.job)
		}
	}))
	s.entries[id] = &entry{job: job, cronID: cronID, schedule: schedule}
	return id, nil
}

// ListPending returns every scheduled job ordered by next fire time.
func (s *Scheduler) ListPending(ctx context.Context) ([]platform.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	jobs := make([]platform.Job, 0, len(s.entries))
	for _, e := range s.entries {
		job := e.job
		job.Data = copyData(e.job.Data)
		if e.schedule != nil {
			job.RunAt = s.cron.Entry(e.cronID).Next
			if job.RunAt.IsZero() {
				job.RunAt = e.schedule.Next(now)
			}
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RunAt.Before(jobs[j].RunAt) })
	return jobs, nil
}

// Cancel removes a pending job. Unknown IDs are ignored.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.schedule != nil {
		s.cron.Remove(e.cronID)
	}
	delete(s.entries, id)
	return nil
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if ok {
		s.run(e.job)
	}
}

func (s *Scheduler) run(job platform.Job) {
	s.mu.Lock()
	fn := s.handlers[job.Name]
	if fn == nil || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if err := fn(s.ctx, job); err != nil {
		utils.Error("scheduler", job.Name, fmt.Sprintf("job %s failed: %v", job.ID, err))
	}
}

func copyData(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
