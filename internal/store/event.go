package store

import (
	"database/sql"
	"time"
)

// NoteState is the edge recorded by a note event.
type NoteState string

const (
	// NoteOn marks a note that started playing.
	NoteOn NoteState = "on"
	// NoteOff marks a note that stopped playing.
	NoteOff NoteState = "off"
)

// NoteEvent is a note edge observed at a given frame of a session.
type NoteEvent struct {
	ID          int64
	SessionID   string
	Note        string
	State       NoteState
	Frame       int
	TimestampMs int64
}

// EventRepository provides operations on note events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the note event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts events in a single transaction.
func (r *EventRepository) Create(events ...NoteEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO note_events (session_id, note, state, frame, timestamp_ms) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		ts := e.TimestampMs
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		if _, err := stmt.Exec(e.SessionID, e.Note, string(e.State), e.Frame, ts); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySession retrieves the events of a session in the order they happened.
func (r *EventRepository) ListBySession(sessionID string) ([]NoteEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, note, state, frame, timestamp_ms
		 FROM note_events
		 WHERE session_id = ?
		 ORDER BY frame, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []NoteEvent
	for rows.Next() {
		var e NoteEvent
		var state string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Note, &state, &e.Frame, &e.TimestampMs); err != nil {
			return nil, err
		}
		e.State = NoteState(state)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountOn returns how many times each note was played in a session.
func (r *EventRepository) CountOn(sessionID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT note, COUNT(*) FROM note_events
		 WHERE session_id = ? AND state = ?
		 GROUP BY note`,
		sessionID, string(NoteOn),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var note string
		var n int
		if err := rows.Scan(&note, &n); err != nil {
			return nil, err
		}
		counts[note] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
