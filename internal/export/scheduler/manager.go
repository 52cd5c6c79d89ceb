package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Start on a running manager.
var ErrAlreadyRunning = errors.New("schedule manager already running")

// ScheduleManager runs configured exports on their cron expressions
type ScheduleManager struct {
	cron      *cron.Cron
	executor  *Executor
	schedules map[string]Schedule
	entries   map[string]cron.EntryID
	logger    *zap.Logger

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// ScheduledEntry describes the next run of a schedule
type ScheduledEntry struct {
	Name string    `json:"name"`
	Cron string    `json:"cron"`
	Next time.Time `json:"next"`
}

// NewScheduleManager creates a manager evaluating cron expressions in loc
// (UTC when nil).
func NewScheduleManager(executor *Executor, loc *time.Location, logger *zap.Logger) *ScheduleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleManager{
		cron:      cron.New(cron.WithParser(cronParser), cron.WithLocation(loc)),
		executor:  executor,
		schedules: make(map[string]Schedule),
		entries:   make(map[string]cron.EntryID),
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Add registers s, replacing any schedule with the same name.
func (m *ScheduleManager) Add(s Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.entries[s.Name]; ok {
		m.cron.Remove(id)
	}
	id, err := m.cron.AddFunc(s.Cron, func() { m.run(s.Name) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.Name, err)
	}
	m.schedules[s.Name] = s
	m.entries[s.Name] = id
	m.logger.Info("Export scheduled",
		zap.String("schedule", s.Name),
		zap.String("cron", s.Cron),
		zap.Strings("recipients", s.Recipients),
		zap.Bool("archive", s.Archive))
	return nil
}

// Start starts the cron loop. Runs triggered after ctx is cancelled are
// skipped.
func (m *ScheduleManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.cron.Start()

	m.logger.Info("Schedule manager started", zap.Int("schedules", len(m.schedules)))
	return nil
}

// Stop halts the cron loop and waits for running exports to finish.
func (m *ScheduleManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	m.logger.Info("Stopping schedule manager")
	cancel()
	<-m.cron.Stop().Done()
}

// RunNow executes the named schedule synchronously.
func (m *ScheduleManager) RunNow(ctx context.Context, name string) (*Execution, error) {
	m.mu.RLock()
	s, ok := m.schedules[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	return m.executor.Execute(ctx, s)
}

// Entries lists the schedules ordered by name.
func (m *ScheduleManager) Entries() []ScheduledEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ScheduledEntry, 0, len(m.schedules))
	for name, s := range m.schedules {
		out = append(out, ScheduledEntry{
			Name: name,
			Cron: s.Cron,
			Next: m.cron.Entry(m.entries[name]).Next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *ScheduleManager) run(name string) {
	m.mu.RLock()
	ctx := m.ctx
	s, ok := m.schedules[name]
	m.mu.RUnlock()
	if !ok || ctx.Err() != nil {
		return
	}

	m.logger.Info("Executing scheduled export", zap.String("schedule", name))
	if _, err := m.executor.Execute(ctx, s); err != nil {
		m.logger.Error("Scheduled export failed",
			zap.String("schedule", name),
			zap.Error(err))
	}
}
