package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadSession returns every record of a session ordered by seq. An unknown
// session reads as empty (not nil) slices.
func (j *Journal) ReadSession(ctx context.Context, session string) (*Session, error) {
	actions, err := j.readActions(ctx, session)
	if err != nil {
		return nil, err
	}
	lifecycle, err := j.readLifecycle(ctx, session)
	if err != nil {
		return nil, err
	}
	return &Session{ID: session, Actions: actions, Lifecycle: lifecycle}, nil
}

func (j *Journal) readActions(ctx context.Context, session string) ([]ActionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, seq, type, payload, state_hash
		FROM actions
		WHERE session = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []ActionRecord{}
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

func (j *Journal) readLifecycle(ctx context.Context, session string) ([]LifecycleRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, seq, identity, logic, key, props, event, mount_count, nested
		FROM lifecycle
		WHERE session = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle: %w", err)
	}
	defer rows.Close()

	records := []LifecycleRecord{}
	for rows.Next() {
		rec, err := scanLifecycle(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lifecycle: %w", err)
	}
	return records, nil
}

// Sessions summarizes every stored session, ordered by session ID. UUIDv7
// session IDs make this creation order.
func (j *Journal) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session,
		       SUM(is_action), SUM(1 - is_action),
		       MIN(seq), MAX(seq)
		FROM (
			SELECT session, seq, 1 AS is_action FROM actions
			UNION ALL
			SELECT session, seq, 0 AS is_action FROM lifecycle
		)
		GROUP BY session
		ORDER BY session COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionSummary{}
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.Actions, &s.Lifecycle, &s.FirstSeq, &s.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest seq recorded for session, or 0.
func (j *Journal) LastSeq(ctx context.Context, session string) (int64, error) {
	var last sql.NullInt64
	err := j.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM actions WHERE session = ?
			UNION ALL
			SELECT seq FROM lifecycle WHERE session = ?
		)
	`, session, session).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return last.Int64, nil
}

func scanAction(rows *sql.Rows) (ActionRecord, error) {
	var rec ActionRecord
	var payload string
	if err := rows.Scan(&rec.ID, &rec.Session, &rec.Seq, &rec.Type, &payload, &rec.StateHash); err != nil {
		return rec, fmt.Errorf("scan action: %w", err)
	}
	v, err := decode(payload)
	if err != nil {
		return rec, fmt.Errorf("action %s: payload: %w", rec.ID, err)
	}
	rec.Payload = v
	return rec, nil
}

func scanLifecycle(rows *sql.Rows) (LifecycleRecord, error) {
	var rec LifecycleRecord
	var key, props string
	if err := rows.Scan(
		&rec.ID, &rec.Session, &rec.Seq, &rec.Identity, &rec.Logic,
		&key, &props, &rec.Event, &rec.MountCount, &rec.Nested,
	); err != nil {
		return rec, fmt.Errorf("scan lifecycle: %w", err)
	}

	k, err := decode(key)
	if err != nil {
		return rec, fmt.Errorf("lifecycle %s: key: %w", rec.ID, err)
	}
	rec.Key = k

	p, err := decode(props)
	if err != nil {
		return rec, fmt.Errorf("lifecycle %s: props: %w", rec.ID, err)
	}
	if m, ok := p.(map[string]any); ok && len(m) > 0 {
		rec.Props = m
	}
	return rec, nil
}
