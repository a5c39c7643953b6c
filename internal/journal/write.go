package journal

import (
	"context"
	"fmt"
)

// WriteAction inserts an action record. Uses ON CONFLICT DO NOTHING:
// writing the same record twice is a no-op.
func (j *Journal) WriteAction(ctx context.Context, rec ActionRecord) error {
	payload, err := encode(rec.Payload)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO actions (id, session, seq, type, payload, state_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, rec.ID, rec.Session, rec.Seq, rec.Type, payload, rec.StateHash)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	return nil
}

// WriteLifecycle inserts a lifecycle record. Uses ON CONFLICT DO NOTHING.
func (j *Journal) WriteLifecycle(ctx context.Context, rec LifecycleRecord) error {
	key, err := encode(rec.Key)
	if err != nil {
		return fmt.Errorf("write lifecycle: key: %w", err)
	}
	props := "{}"
	if rec.Props != nil {
		if props, err = encode(rec.Props); err != nil {
			return fmt.Errorf("write lifecycle: props: %w", err)
		}
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO lifecycle (id, session, seq, identity, logic, key, props, event, mount_count, nested)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, rec.ID, rec.Session, rec.Seq, rec.Identity, rec.Logic, key, props, rec.Event, rec.MountCount, rec.Nested)
	if err != nil {
		return fmt.Errorf("write lifecycle: %w", err)
	}
	return nil
}
