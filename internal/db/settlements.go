package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tsubakiyo/warikan/internal/split"
)

// ParticipantSettlement pairs a snapshot with the queried participant's own
// owed amount, pulled from the snapshot's byParticipant totals.
type ParticipantSettlement struct {
	Snapshot   split.Snapshot `json:"snapshot"`
	AmountOwed float64        `json:"amount_owed"`
}

// UpsertSettlement writes the snapshot for its session, replacing any
// existing one. Finalize is treated as correctable: a second call for the
// same session overwrites, never duplicates (last writer wins).
func (db *DB) UpsertSettlement(ctx context.Context, snapshot *split.Snapshot) error {
	participants, err := json.Marshal(snapshot.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	allocations, err := json.Marshal(snapshot.Allocations)
	if err != nil {
		return fmt.Errorf("marshal allocations: %w", err)
	}
	totals, err := json.Marshal(snapshot.Totals)
	if err != nil {
		return fmt.Errorf("marshal totals: %w", err)
	}

	participantIDs := make([]string, 0, len(snapshot.Participants))
	for _, p := range snapshot.Participants {
		participantIDs = append(participantIDs, p.UniqueID)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO settlements (session_id, participants, allocations, totals, participant_ids, finalized_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (session_id) DO UPDATE
         SET participants = EXCLUDED.participants,
             allocations = EXCLUDED.allocations,
             totals = EXCLUDED.totals,
             participant_ids = EXCLUDED.participant_ids,
             finalized_at = EXCLUDED.finalized_at`,
		snapshot.SessionID, participants, allocations, totals, participantIDs, snapshot.FinalizedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SettlementBySession returns the session's snapshot, or ErrNotFound.
func (db *DB) SettlementBySession(ctx context.Context, sessionID string) (*split.Snapshot, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT session_id, participants, allocations, totals, finalized_at
		 FROM settlements
		 WHERE session_id = $1`,
		sessionID,
	)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return snapshot, nil
}

// SettlementsByParticipant returns snapshots the participant appears in,
// newest first. limit <= 0 returns all of them.
func (db *DB) SettlementsByParticipant(ctx context.Context, uniqueID string, limit int) ([]ParticipantSettlement, error) {
	query := `SELECT session_id, participants, allocations, totals, finalized_at
		 FROM settlements
		 WHERE $1 = ANY(participant_ids)
		 ORDER BY finalized_at DESC`
	args := []any{uniqueID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ParticipantSettlement
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ParticipantSettlement{
			Snapshot:   *snapshot,
			AmountOwed: owedAmount(snapshot, uniqueID),
		})
	}
	return out, rows.Err()
}

func scanSnapshot(row pgx.Row) (*split.Snapshot, error) {
	var snapshot split.Snapshot
	var participants, allocations, totals []byte
	if err := row.Scan(&snapshot.SessionID, &participants, &allocations, &totals, &snapshot.FinalizedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(participants, &snapshot.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	if err := json.Unmarshal(allocations, &snapshot.Allocations); err != nil {
		return nil, fmt.Errorf("unmarshal allocations: %w", err)
	}
	if err := json.Unmarshal(totals, &snapshot.Totals); err != nil {
		return nil, fmt.Errorf("unmarshal totals: %w", err)
	}
	return &snapshot, nil
}

func owedAmount(snapshot *split.Snapshot, uniqueID string) float64 {
	for _, pt := range snapshot.Totals.ByParticipant {
		if pt.ParticipantID == uniqueID {
			return pt.AmountOwed
		}
	}
	return 0
}
