// Package engine owns the task set and the single shared wake-up timer.
//
// All mutations (create, delete, the timer callback) are serialized through
// one engine instance. Within one timer callback, dispatch fans out
// concurrently across all due tasks; the next timer is armed only after the
// whole batch has finished.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pushflow/internal/cron"
	"pushflow/internal/domain"
	"pushflow/internal/pushover"
	"pushflow/internal/store"
	"pushflow/internal/tz"
)

// ErrNotFound is returned by Get and GetLogs for unknown task ids.
var ErrNotFound = store.ErrNotFound

// ValidationError rejects a malformed create request; the task is never
// persisted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid task: " + e.Reason }

// Dispatcher sends one notification and reports transport-level detail.
type Dispatcher interface {
	Send(ctx context.Context, message, title string, params map[string]string) (string, error)
}

// Generator resolves notification text from a prompt at execution time.
type Generator interface {
	Generate(ctx context.Context, model, systemPrompt, prompt string) (string, error)
}

// Armer is the narrow timer backend: at most one outstanding wake-up, and
// arming overwrites any previously armed one.
type Armer interface {
	Arm(at time.Time)
	Stop()
}

type CreateRequest struct {
	Message        string            `json:"message,omitempty"`
	Title          string            `json:"title,omitempty"`
	AIPrompt       string            `json:"aiPrompt,omitempty"`
	AIModel        string            `json:"aiModel,omitempty"`
	AISystemPrompt string            `json:"aiSystemPrompt,omitempty"`
	Schedule       domain.Schedule   `json:"schedule"`
	Pushover       map[string]string `json:"pushover,omitempty"`
}

type CreateResult struct {
	ID            string    `json:"id"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

type Engine struct {
	mu    sync.Mutex
	store store.Store
	disp  Dispatcher
	gen   Generator // nil when generation is not configured
	loc   *time.Location
	armer Armer
}

func New(st store.Store, disp Dispatcher, gen Generator, loc *time.Location) *Engine {
	e := &Engine{store: st, disp: disp, gen: gen, loc: loc}
	e.armer = newTimerArmer(e.fire)
	return e
}

// NewWithArmer substitutes the timer backend (used by tests and alternate
// trigger mechanisms).
func NewWithArmer(st store.Store, disp Dispatcher, gen Generator, loc *time.Location, armer Armer) *Engine {
	return &Engine{store: st, disp: disp, gen: gen, loc: loc, armer: armer}
}

func (e *Engine) fire() {
	e.RunDue(context.Background(), time.Now())
}

// Start restores the wake-up timer from the persisted task set.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := e.listOrEmpty(ctx)
	e.rearm(tasks, time.Now())
	log.Info().Int("tasks", len(tasks)).Str("tz", e.loc.String()).Msg("scheduler started")
}

func (e *Engine) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if req.Message == "" && req.AIPrompt == "" {
		return CreateResult{}, &ValidationError{Reason: "message or aiPrompt is required"}
	}

	now := time.Now()
	var scheduled time.Time
	switch req.Schedule.Type {
	case domain.ScheduleOnce:
		if req.Schedule.Datetime == "" {
			return CreateResult{}, &ValidationError{Reason: "datetime is required for a once schedule"}
		}
		at, err := tz.ToInstant(req.Schedule.Datetime, e.loc)
		if err != nil {
			return CreateResult{}, &ValidationError{Reason: err.Error()}
		}
		scheduled = at
	case domain.ScheduleRepeat:
		if req.Schedule.Cron == "" {
			return CreateResult{}, &ValidationError{Reason: "cron is required for a repeat schedule"}
		}
		// A malformed cron is accepted here and silently never matches;
		// NextAfter then yields its hourly fallback.
		scheduled = cron.NextAfter(req.Schedule.Cron, now, e.loc)
	default:
		return CreateResult{}, &ValidationError{Reason: "schedule type must be once or repeat"}
	}

	t := domain.Task{
		ID:             "tsk_" + uuid.NewString(),
		Message:        req.Message,
		Title:          req.Title,
		AIPrompt:       req.AIPrompt,
		AIModel:        req.AIModel,
		AISystemPrompt: req.AISystemPrompt,
		Schedule:       req.Schedule,
		Pushover:       req.Pushover,
		CreatedAt:      now,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Put(ctx, t); err != nil {
		return CreateResult{}, err
	}
	e.rearm(e.listOrEmpty(ctx), now)
	log.Info().Str("task_id", t.ID).Str("type", string(t.Schedule.Type)).Time("scheduled", scheduled).Msg("task created")
	return CreateResult{ID: t.ID, ScheduledTime: scheduled}, nil
}

func (e *Engine) List(ctx context.Context) ([]domain.Task, error) {
	return e.store.ListAll(ctx)
}

func (e *Engine) Get(ctx context.Context, id string) (domain.Task, error) {
	return e.store.Get(ctx, id)
}

func (e *Engine) GetLogs(ctx context.Context, id string) ([]domain.ExecutionLog, error) {
	t, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.ExecutionHistory, nil
}

// Delete removes a task unconditionally; deleting a missing id is not an
// error.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	e.rearm(e.listOrEmpty(ctx), time.Now())
	return nil
}

// RunDue is the timer callback: it executes every currently-due task,
// applies each task's post-run state, and re-arms the timer for the new
// earliest due instant across the surviving task set.
func (e *Engine) RunDue(ctx context.Context, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks := e.listOrEmpty(ctx)
	var due []domain.Task
	for _, t := range tasks {
		if e.shouldRun(t, now) {
			due = append(due, t)
		}
	}
	if len(due) > 0 {
		log.Info().Int("due", len(due)).Int("total", len(tasks)).Time("now", now).Msg("executing due tasks")
	}

	var wg sync.WaitGroup
	for _, t := range due {
		wg.Add(1)
		go func(t domain.Task) {
			defer wg.Done()
			e.runTask(ctx, t, now)
		}(t)
	}
	wg.Wait()

	e.rearm(e.listOrEmpty(ctx), now)
}

// shouldRun reports whether a task is due at now. A repeat task anchors its
// next occurrence on lastRun, or the epoch before its first run.
func (e *Engine) shouldRun(t domain.Task, now time.Time) bool {
	switch t.Schedule.Type {
	case domain.ScheduleOnce:
		at, err := tz.ToInstant(t.Schedule.Datetime, e.loc)
		if err != nil {
			return false
		}
		return !now.Before(at)
	case domain.ScheduleRepeat:
		anchor := time.Unix(0, 0).UTC()
		if t.LastRun != nil {
			anchor = *t.LastRun
		}
		return !now.Before(cron.NextAfter(t.Schedule.Cron, anchor, e.loc))
	}
	return false
}

// runTask executes one due task and persists its post-run state.
func (e *Engine) runTask(ctx context.Context, t domain.Task, now time.Time) {
	msg := t.Message
	aiMsg := ""
	if t.AIPrompt != "" && e.gen != nil {
		generated, err := e.gen.Generate(ctx, t.AIModel, t.AISystemPrompt, t.AIPrompt)
		if err != nil {
			// Generation failure falls back to the static message (which
			// may itself be empty).
			log.Warn().Str("task_id", t.ID).Err(err).Msg("generation failed, using static message")
		} else {
			msg = generated
			aiMsg = generated
		}
	}

	detail, err := e.disp.Send(ctx, msg, t.Title, t.Pushover)
	if err == nil {
		log.Info().Str("task_id", t.ID).Msg("notification delivered")
		if t.Schedule.Type == domain.ScheduleOnce {
			if derr := e.store.Delete(ctx, t.ID); derr != nil {
				log.Error().Str("task_id", t.ID).Err(derr).Msg("failed to remove completed task")
			}
			return
		}
		t.AppendLog(domain.ExecutionLog{
			ExecutedAt:         now,
			Status:             domain.StatusSuccess,
			Response:           detail,
			AIGeneratedMessage: aiMsg,
		})
		t.LastRun = &now
		if perr := e.store.Put(ctx, t); perr != nil {
			log.Error().Str("task_id", t.ID).Err(perr).Msg("failed to persist task after run")
		}
		return
	}

	log.Error().Str("task_id", t.ID).Err(err).Msg("notification delivery failed")
	if pushover.IsPermanentError(err) {
		// Bad credentials will not self-resolve; evict regardless of
		// schedule type.
		if derr := e.store.Delete(ctx, t.ID); derr != nil {
			log.Error().Str("task_id", t.ID).Err(derr).Msg("failed to evict task")
		}
		return
	}
	t.AppendLog(domain.ExecutionLog{
		ExecutedAt:         now,
		Status:             domain.StatusFailed,
		Error:              err.Error(),
		AIGeneratedMessage: aiMsg,
	})
	t.LastRun = &now
	// A once task kept here has no further trigger once its datetime has
	// passed; retry for a repeat task means its next natural cron tick.
	if perr := e.store.Put(ctx, t); perr != nil {
		log.Error().Str("task_id", t.ID).Err(perr).Msg("failed to persist task after failed run")
	}
}

// nextDue computes a task's own next occurrence for timer arming. ok is
// false when no occurrence can be derived (unparsable once datetime, or a
// once task that already had its attempt).
func (e *Engine) nextDue(t domain.Task, now time.Time) (time.Time, bool) {
	switch t.Schedule.Type {
	case domain.ScheduleOnce:
		// A once task that survived a transient failure has no further
		// trigger of its own: its datetime stays in the past forever, so
		// arming on it would spin the timer. It remains eligible whenever
		// another task's wake-up fires.
		if t.LastRun != nil {
			return time.Time{}, false
		}
		at, err := tz.ToInstant(t.Schedule.Datetime, e.loc)
		if err != nil {
			return time.Time{}, false
		}
		return at, true
	case domain.ScheduleRepeat:
		anchor := time.Unix(0, 0).UTC()
		if t.LastRun != nil {
			anchor = *t.LastRun
		}
		return cron.NextAfter(t.Schedule.Cron, anchor, e.loc), true
	}
	return time.Time{}, false
}

// rearm recomputes the global earliest due instant across all tasks and
// arms the single shared timer; with no tasks, no timer is armed. Always
// called with e.mu held.
func (e *Engine) rearm(tasks []domain.Task, now time.Time) {
	var earliest time.Time
	found := false
	for _, t := range tasks {
		at, ok := e.nextDue(t, now)
		if !ok {
			continue
		}
		if !found || at.Before(earliest) {
			earliest = at
			found = true
		}
	}
	if !found {
		e.armer.Stop()
		return
	}
	e.armer.Arm(earliest)
	log.Debug().Time("wake", earliest).Int("tasks", len(tasks)).Msg("timer armed")
}

func (e *Engine) listOrEmpty(ctx context.Context) []domain.Task {
	tasks, err := e.store.ListAll(ctx)
	if err != nil {
		// Degrade to zero tasks for this cycle; the next create or
		// wake-up re-derives the due set.
		log.Error().Err(err).Msg("task listing failed, treating as empty")
		return nil
	}
	return tasks
}

// IsNotFound reports whether err is the unknown-id error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
