// Package reminder runs periodic passes that find items due for an expiry
// reminder, dispatch them and record the outcome.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/shramba/internal/events"
	"github.com/erazemk/shramba/internal/expiry"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/notify"
)

// Store is the persistence the scheduler needs.
type Store interface {
	ListOwners(ctx context.Context) ([]int64, error)
	ListItems(ctx context.Context, ownerID int64) ([]model.Item, error)
	MarkReminderSent(ctx context.Context, ownerID, id int64, expiryDate model.Date) (bool, error)
}

// PassRecorder is optionally implemented by a Store to remember when the
// last pass finished.
type PassRecorder interface {
	RecordReminderPass(ctx context.Context, at time.Time) error
}

// Dispatcher delivers a single reminder.
type Dispatcher interface {
	DispatchOn(ctx context.Context, item model.Item, others []string, today model.Date) notify.Result
}

// Config holds scheduler settings.
type Config struct {
	Interval    time.Duration
	Concurrency int
	RunOnStart  bool
}

// DefaultConfig returns the settings used by the server.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Hour,
		Concurrency: 4,
		RunOnStart:  true,
	}
}

// State is what the scheduler is doing right now.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PassReport summarises one pass.
type PassReport struct {
	PassID      string        `json:"pass_id"`
	Today       model.Date    `json:"today"`
	Owners      int           `json:"owners"`
	OwnerErrors int           `json:"owner_errors"`
	Evaluated   int           `json:"evaluated"`
	Due         int           `json:"due"`
	Delivered   int           `json:"delivered"`
	Failed      int           `json:"failed"`
	Marked      int           `json:"marked"`
	MarkErrors  int           `json:"mark_errors"`
	Stale       int           `json:"stale"`
	Duration    time.Duration `json:"duration"`

	// Items is the annotated snapshot the pass worked on, with reminder
	// flags updated for every reminder that was recorded.
	Items []model.Item `json:"items,omitempty"`
}

// Stats are cumulative counters since the scheduler was created.
type Stats struct {
	Running     bool       `json:"running"`
	State       string     `json:"state"`
	Passes      uint64     `json:"passes"`
	Delivered   uint64     `json:"delivered"`
	Failed      uint64     `json:"failed"`
	LastPassID  string     `json:"last_pass_id,omitempty"`
	LastPassAt  *time.Time `json:"last_pass_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
}

// Scheduler runs reminder passes on a ticker or on demand.
type Scheduler struct {
	store      Store
	dispatcher Dispatcher
	emitter    *events.Emitter
	config     Config
	logger     *slog.Logger
	now        func() time.Time

	state  atomic.Int32
	passMu sync.Mutex

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewScheduler creates a scheduler. emitter may be nil.
func NewScheduler(store Store, dispatcher Dispatcher, emitter *events.Emitter, config Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		emitter:    emitter,
		config:     config,
		logger:     logger,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Start begins the periodic loop in a goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, stop)

	s.logger.Info("reminder scheduler started",
		"interval", s.config.Interval,
		"concurrency", s.config.Concurrency,
	)
	return nil
}

// Stop stops the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("reminder scheduler stopped")
}

// IsRunning reports whether the loop is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	// Passes are cancelled on Stop as well as on ctx.
	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-passCtx.Done():
		}
	}()

	if s.config.RunOnStart {
		s.tick(passCtx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.tick(passCtx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx, expiry.Today(s.now())); err != nil {
		s.logger.Error("reminder pass failed", "error", err)
	}
}

// RunOnce runs a pass over every owner. Passes never overlap: a call made
// while another pass runs waits for it to finish.
func (s *Scheduler) RunOnce(ctx context.Context, today model.Date) (PassReport, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	report := s.newReport(today)
	start := s.now()

	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		s.recordError(err)
		return report, fmt.Errorf("listing owners: %w", err)
	}

	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			s.finish(ctx, &report, start)
			return report, err
		}
		s.runOwner(ctx, ownerID, &report)
	}

	s.finish(ctx, &report, start)
	return report, nil
}

// RunOwner runs a pass over a single owner's items.
func (s *Scheduler) RunOwner(ctx context.Context, ownerID int64, today model.Date) (PassReport, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	report := s.newReport(today)
	start := s.now()

	if err := s.runOwner(ctx, ownerID, &report); err != nil {
		s.finish(ctx, &report, start)
		return report, err
	}

	s.finish(ctx, &report, start)
	return report, nil
}

func (s *Scheduler) newReport(today model.Date) PassReport {
	return PassReport{PassID: uuid.NewString(), Today: today}
}

func (s *Scheduler) runOwner(ctx context.Context, ownerID int64, report *PassReport) error {
	s.state.Store(int32(StateEvaluating))
	defer s.state.Store(int32(StateIdle))

	report.Owners++

	items, err := s.store.ListItems(ctx, ownerID)
	if err != nil {
		report.OwnerErrors++
		s.recordError(err)
		s.logger.Error("listing items for reminder pass",
			"pass_id", report.PassID,
			"owner_id", ownerID,
			"error", err,
		)
		return fmt.Errorf("listing items for owner %d: %w", ownerID, err)
	}

	snapshot := expiry.Annotate(items, report.Today)
	report.Evaluated += len(snapshot)

	var due []int
	for i, item := range snapshot {
		if expiry.IsDue(item, report.Today) {
			due = append(due, i)
		}
	}
	report.Due += len(due)

	if len(due) > 0 {
		s.state.Store(int32(StateDispatching))
		s.dispatchAll(ctx, snapshot, due, report)
	}

	report.Items = append(report.Items, snapshot...)
	return nil
}

func (s *Scheduler) dispatchAll(ctx context.Context, snapshot []model.Item, due []int, report *PassReport) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)

	for _, idx := range due {
		g.Go(func() error {
			item := snapshot[idx]
			outcome := s.dispatchOne(ctx, item, otherNames(snapshot, item.ID), report)
			if outcome.marked {
				snapshot[idx].ReminderSent = true
			}

			mu.Lock()
			defer mu.Unlock()
			if outcome.delivered {
				report.Delivered++
			} else {
				report.Failed++
			}
			if outcome.marked {
				report.Marked++
			}
			if outcome.stale {
				report.Stale++
			}
			if outcome.markErr {
				report.MarkErrors++
			}
			return nil
		})
	}
	_ = g.Wait()
}

type outcome struct {
	delivered bool
	marked    bool
	stale     bool
	markErr   bool
}

func (s *Scheduler) dispatchOne(ctx context.Context, item model.Item, others []string, report *PassReport) outcome {
	var out outcome
	daysLeft := expiry.DaysUntil(item.ExpiryDate, report.Today)

	result := s.dispatcher.DispatchOn(ctx, item, others, report.Today)
	out.delivered = result.Delivered()

	data := events.ReminderData{
		PassID:      report.PassID,
		OwnerID:     item.OwnerID,
		ItemID:      item.ID,
		ItemName:    item.Name,
		ExpiryDate:  item.ExpiryDate.String(),
		DaysLeft:    daysLeft,
		EmailSent:   result.EmailSent,
		MessageSent: result.MessageSent,
		MessageID:   result.MessageID,
	}

	if !out.delivered {
		s.logger.Warn("reminder not delivered",
			"pass_id", report.PassID,
			"item_id", item.ID,
			"owner_id", item.OwnerID,
		)
		s.emitter.Emit(ctx, events.ReminderFailed, data)
		return out
	}

	ok, err := s.store.MarkReminderSent(ctx, item.OwnerID, item.ID, item.ExpiryDate)
	switch {
	case err != nil:
		// The flag stays clear, so the next pass will try again.
		out.markErr = true
		s.recordError(err)
		s.logger.Error("recording reminder",
			"pass_id", report.PassID,
			"item_id", item.ID,
			"owner_id", item.OwnerID,
			"error", err,
		)
	case !ok:
		out.stale = true
		s.logger.Info("expiry date changed during dispatch",
			"pass_id", report.PassID,
			"item_id", item.ID,
			"owner_id", item.OwnerID,
		)
	default:
		out.marked = true
		s.logger.Info("reminder sent",
			"pass_id", report.PassID,
			"item_id", item.ID,
			"owner_id", item.OwnerID,
			"days_left", daysLeft,
			"email", result.EmailSent,
			"whatsapp", result.MessageSent,
		)
	}

	s.emitter.Emit(ctx, events.ReminderDispatched, data)
	return out
}

// otherNames lists the names of every item except the one with id.
func otherNames(items []model.Item, id int64) []string {
	names := make([]string, 0, len(items))
	for i := range items {
		if items[i].ID != id {
			names = append(names, items[i].Name)
		}
	}
	return names
}

func (s *Scheduler) finish(ctx context.Context, report *PassReport, start time.Time) {
	end := s.now()
	report.Duration = end.Sub(start)

	s.statsMu.Lock()
	s.stats.Passes++
	s.stats.Delivered += uint64(report.Delivered)
	s.stats.Failed += uint64(report.Failed)
	s.stats.LastPassID = report.PassID
	s.stats.LastPassAt = &end
	s.statsMu.Unlock()

	if rec, ok := s.store.(PassRecorder); ok {
		if err := rec.RecordReminderPass(ctx, end); err != nil {
			s.logger.Warn("recording reminder pass time", "error", err)
		}
	}

	s.emitter.Emit(ctx, events.PassCompleted, events.PassData{
		PassID:     report.PassID,
		Today:      report.Today.String(),
		Owners:     report.Owners,
		Evaluated:  report.Evaluated,
		Due:        report.Due,
		Delivered:  report.Delivered,
		Failed:     report.Failed,
		DurationMS: report.Duration.Milliseconds(),
	})

	s.logger.Info("reminder pass finished",
		"pass_id", report.PassID,
		"today", report.Today.String(),
		"owners", report.Owners,
		"evaluated", report.Evaluated,
		"due", report.Due,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"duration", report.Duration,
	)
}

// Stats returns cumulative scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	st := s.stats
	st.Running = s.IsRunning()
	st.State = s.State().String()
	return st
}

func (s *Scheduler) recordError(err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	now := s.now()
	s.stats.LastError = err.Error()
	s.stats.LastErrorAt = &now
}
