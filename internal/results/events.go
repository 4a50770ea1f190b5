package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-arena/internal/session"
)

// Session telemetry event types.
const (
	EventSessionStarted    = "session_started"
	EventEdgeCaseTriggered = "edge_case_triggered"
	EventSessionFinalized  = "session_finalized"
	EventSessionDiscarded  = "session_discarded"
)

// Event is a telemetry event persisted to the session_events table.
type Event struct {
	SessionID    string
	PlayerID     string
	CompetencyID string
	EventType    string
	Data         map[string]any
	CreatedAt    time.Time
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, event Event) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// PostgresEventLogger inserts events into the session_events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO session_events (session_id, player_id, competency_id, event_type, data, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		event.SessionID,
		nullIfBlank(event.PlayerID),
		nullIfBlank(event.CompetencyID),
		event.EventType,
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.EventType,
		"session_id", event.SessionID,
		"player_id", event.PlayerID,
	)
	return nil
}

// Telemetry records the lifecycle events of one session. Runner hooks must
// not block, so events are written in the background; Wait drains them.
type Telemetry struct {
	logger       EventLogger
	sessionID    string
	playerID     string
	competencyID string
	wg           sync.WaitGroup
}

// NewTelemetry binds a logger to one session. A nil logger discards events.
func NewTelemetry(logger EventLogger, sessionID, playerID, competencyID string) *Telemetry {
	if logger == nil {
		logger = NopEventLogger{}
	}
	return &Telemetry{
		logger:       logger,
		sessionID:    sessionID,
		playerID:     playerID,
		competencyID: competencyID,
	}
}

// Started records the session start.
func (t *Telemetry) Started(sessionCount int) {
	t.log(EventSessionStarted, map[string]any{"session_count": sessionCount})
}

// Hooks returns runner hooks that record edge-case, finalize and discard
// events.
func (t *Telemetry) Hooks() session.Hooks {
	return session.Hooks{
		OnEdgeCase: func(ev session.EdgeCaseEvent) {
			t.log(EventEdgeCaseTriggered, map[string]any{
				"triggered_at_seconds": ev.TriggeredAt.Seconds(),
			})
		},
		OnFinalize: func(r session.Result) {
			data := map[string]any{
				"level":           r.Level.String(),
				"accuracy":        r.Metrics.Accuracy,
				"elapsed_seconds": r.Metrics.ElapsedSeconds,
				"timed_out":       r.Metrics.TimedOut,
			}
			if r.Metrics.EdgeCaseScore != nil {
				data["edge_case_score"] = *r.Metrics.EdgeCaseScore
			}
			t.log(EventSessionFinalized, data)
		},
		OnDiscard: func(st session.State) {
			t.log(EventSessionDiscarded, map[string]any{
				"phase":           st.Phase,
				"elapsed_seconds": st.Elapsed.Seconds(),
			})
		},
	}
}

// Wait blocks until every recorded event has been written.
func (t *Telemetry) Wait() {
	t.wg.Wait()
}

func (t *Telemetry) log(eventType string, data map[string]any) {
	ev := Event{
		SessionID:    t.sessionID,
		PlayerID:     t.playerID,
		CompetencyID: t.competencyID,
		EventType:    eventType,
		Data:         data,
		CreatedAt:    time.Now(),
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.logger.LogEvent(context.Background(), ev); err != nil {
			slog.Warn("failed to log session event", "type", eventType, "session_id", t.sessionID, "error", err)
		}
	}()
}

func nullIfBlank(v string) any {
	if v == "" {
		return nil
	}
	return v
}
