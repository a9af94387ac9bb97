package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Session struct {
	ID         string
	CreatorID  string
	GroupID    *string
	Processing bool
	CreatedAt  time.Time
}

// CreateSession creates a scan session owned by creatorID.
func (db *DB) CreateSession(ctx context.Context, creatorID string, groupID *string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatorID: creatorID,
		GroupID:   groupID,
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, creator_id, group_id)
         VALUES ($1, $2, $3)
         RETURNING created_at`,
		sess.ID, sess.CreatorID, sess.GroupID,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (db *DB) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, creator_id, group_id, processing, created_at FROM sessions WHERE id = $1`,
		sessionID,
	)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.CreatorID, &sess.GroupID, &sess.Processing, &sess.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// TryBeginProcessing flips the session's processing flag on. It returns
// false when a scan is already in flight, so two concurrent parse calls
// cannot duplicate work for the same session.
func (db *DB) TryBeginProcessing(ctx context.Context, sessionID string) (bool, error) {
	ct, err := db.pool.Exec(ctx,
		`UPDATE sessions SET processing = TRUE WHERE id = $1 AND processing = FALSE`,
		sessionID,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (db *DB) EndProcessing(ctx context.Context, sessionID string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE sessions SET processing = FALSE WHERE id = $1`,
		sessionID,
	)
	return err
}
