package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const sessionColumns = "id, mode, state, upload_name, diagnostics_count, error_kind, failure_reason, output_id, created_at, updated_at"

// CreateSession inserts a session in the received state.
func (s *Store) CreateSession(ctx context.Context, id, mode, uploadName string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("session id is required")
	}
	now := time.Now().UTC()
	ctx = ensureContext(ctx)

	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, mode, state, upload_name, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			id, mode, StateReceived, nullableString(uploadName), formatTime(now), formatTime(now),
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_transitions (session_id, state, at) VALUES (?, ?, ?)`,
			id, StateReceived, formatTime(now),
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// Transition moves a session to state, recording detail. Sessions in a
// terminal state refuse further transitions.
func (s *Store) Transition(ctx context.Context, id string, state State, detail Detail) error {
	if !state.Valid() {
		return fmt.Errorf("transition session %s: unknown state %q", id, state)
	}
	now := formatTime(time.Now())
	ctx = ensureContext(ctx)

	var applied bool
	err := retryOnBusy(ctx, func() error {
		applied = false
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`UPDATE sessions
             SET state = ?,
                 diagnostics_count = CASE WHEN ? > 0 THEN ? ELSE diagnostics_count END,
                 error_kind = COALESCE(?, error_kind),
                 failure_reason = COALESCE(?, failure_reason),
                 output_id = COALESCE(?, output_id),
                 updated_at = ?
             WHERE id = ? AND state NOT IN (?, ?, ?)`,
			state,
			detail.Diagnostics, detail.Diagnostics,
			nullableString(detail.ErrorKind),
			nullableString(detail.FailureReason),
			nullableString(detail.OutputID),
			now,
			id,
			StateReady, StateFailed, StateRejected,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_transitions (session_id, state, at) VALUES (?, ?, ?)`,
			id, state, now,
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("transition session %s: %w", id, err)
	}
	if applied {
		return nil
	}

	current, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return fmt.Errorf("%w: %s is %s", ErrTerminal, id, current.State)
}

// GetSession returns the session with id, or nil when none exists.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessions returns sessions newest first. A zero limit returns all.
// When states is non-empty only sessions in one of those states are returned.
func (s *Store) ListSessions(ctx context.Context, limit int, states ...State) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := make([]any, 0, len(states)+1)
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, state)
		}
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// History returns the transitions recorded for a session in order.
func (s *Store) History(ctx context.Context, id string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT state, at FROM session_transitions WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}
	defer rows.Close()

	var history []Transition
	for rows.Next() {
		var (
			state string
			atRaw string
		)
		if err := rows.Scan(&state, &atRaw); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		entry := Transition{State: State(state)}
		if at, err := parseTimeString(atRaw); err == nil {
			entry.At = at
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// Stats returns a count of sessions grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT state, COUNT(1) FROM sessions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id            string
		mode          string
		state         string
		uploadName    sql.NullString
		diagnostics   sql.NullInt64
		errorKind     sql.NullString
		failureReason sql.NullString
		outputID      sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&mode,
		&state,
		&uploadName,
		&diagnostics,
		&errorKind,
		&failureReason,
		&outputID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:            id,
		Mode:          mode,
		State:         State(state),
		UploadName:    uploadName.String,
		Diagnostics:   int(diagnostics.Int64),
		ErrorKind:     errorKind.String,
		FailureReason: failureReason.String,
		OutputID:      outputID.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		session.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		session.UpdatedAt = updated
	}
	return session, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
