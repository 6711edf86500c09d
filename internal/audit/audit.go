// Package audit records a per-run evaluation trace for the scoring
// engine: tick starts, check evaluations, and score mutations, in a
// single monotonically sequenced event stream.
//
// The trace is a diagnostic, not a score store. It defaults to an
// in-memory SQLite database that dies with the engine instance; passing
// a file path is an opt-in debugging aid (e.g. for `scorebox trace`).
// Scores themselves are never persisted across runs.
package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// InMemory is the Open path for a trace that is discarded on Close.
const InMemory = ":memory:"

// EventType categorizes trace events.
type EventType string

const (
	// EventTickStarted marks the beginning of a dispatch pass.
	EventTickStarted EventType = "tick_started"
	// EventCheckEvaluated records one condition dispatch and its outcome.
	EventCheckEvaluated EventType = "check_evaluated"
	// EventScoreUpserted records a ledger upsert.
	EventScoreUpserted EventType = "score_upserted"
	// EventScoreRemoved records a ledger removal.
	EventScoreRemoved EventType = "score_removed"
)

// Event is one row of the trace.
// Fields beyond Seq/Tick/Type are populated per event type: CheckID,
// Kind, Completed, and ErrCode for check evaluations; ScoreID, Value,
// and Reason for score events.
type Event struct {
	Seq       int64
	Tick      uint64
	Type      EventType
	CheckID   string
	Kind      string
	Completed bool
	ErrCode   string
	ScoreID   uint64
	Value     int
	Reason    string
}

// Log is a SQLite-backed event trace. It implements engine.Recorder.
//
// Writes come from the engine's scheduler goroutine and from whichever
// goroutines post scores; SQLite serializes them on a single
// connection, and the seq counter is atomic.
type Log struct {
	db  *sql.DB
	seq atomic.Int64
}

// Open creates a trace log at the given path, applying the schema.
// Use InMemory for a trace that lives and dies with the run.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: connect %s: %w", path, err)
	}

	// One writer avoids SQLITE_BUSY; an in-memory database additionally
	// requires a single connection or each conn sees its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: pragma: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: apply schema: %w", err)
	}

	l := &Log{db: db}

	// Resume the seq counter when reopening a file-backed trace.
	var maxSeq sql.NullInt64
	if err := db.QueryRow("SELECT MAX(seq) FROM events").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: read seq: %w", err)
	}
	if maxSeq.Valid {
		l.seq.Store(maxSeq.Int64)
	}

	return l, nil
}

// Close releases the underlying database. An in-memory trace is
// discarded.
func (l *Log) Close() error {
	return l.db.Close()
}

// record inserts one event, assigning the next seq.
// Recording is best-effort: the engine must not stall on a broken
// trace, so failures are returned for the caller to log, never to halt
// dispatch.
func (l *Log) record(ev Event) error {
	ev.Seq = l.seq.Add(1)
	_, err := l.db.Exec(`
		INSERT INTO events
		(seq, tick, type, check_id, kind, completed, err_code, score_id, value, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Seq,
		ev.Tick,
		string(ev.Type),
		ev.CheckID,
		ev.Kind,
		ev.Completed,
		ev.ErrCode,
		ev.ScoreID,
		ev.Value,
		ev.Reason,
	)
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", ev.Type, err)
	}
	return nil
}

// TickStarted implements engine.Recorder.
func (l *Log) TickStarted(tick uint64) {
	_ = l.record(Event{Tick: tick, Type: EventTickStarted})
}

// CheckEvaluated implements engine.Recorder.
func (l *Log) CheckEvaluated(tick uint64, checkID, kind string, completed bool, errCode string) {
	_ = l.record(Event{
		Tick:      tick,
		Type:      EventCheckEvaluated,
		CheckID:   checkID,
		Kind:      kind,
		Completed: completed,
		ErrCode:   errCode,
	})
}

// ScoreUpserted implements engine.Recorder.
func (l *Log) ScoreUpserted(tick uint64, id uint64, value int, reason string) {
	_ = l.record(Event{
		Tick:    tick,
		Type:    EventScoreUpserted,
		ScoreID: id,
		Value:   value,
		Reason:  reason,
	})
}

// ScoreRemoved implements engine.Recorder.
func (l *Log) ScoreRemoved(tick uint64, id uint64) {
	_ = l.record(Event{Tick: tick, Type: EventScoreRemoved, ScoreID: id})
}

// Events returns the whole trace in seq order.
// Returns an empty slice, not nil, when the trace is empty.
func (l *Log) Events(ctx context.Context) ([]Event, error) {
	return l.query(ctx, `
		SELECT seq, tick, type, check_id, kind, completed, err_code, score_id, value, reason
		FROM events
		ORDER BY seq ASC
	`)
}

// EventsForCheck returns the trace rows for one check id in seq order.
func (l *Log) EventsForCheck(ctx context.Context, checkID string) ([]Event, error) {
	return l.query(ctx, `
		SELECT seq, tick, type, check_id, kind, completed, err_code, score_id, value, reason
		FROM events
		WHERE check_id = ?
		ORDER BY seq ASC
	`, checkID)
}

func (l *Log) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var ev Event
		var typ string
		if err := rows.Scan(&ev.Seq, &ev.Tick, &typ, &ev.CheckID, &ev.Kind,
			&ev.Completed, &ev.ErrCode, &ev.ScoreID, &ev.Value, &ev.Reason); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		ev.Type = EventType(typ)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}
