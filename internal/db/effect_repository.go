package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/effect"
)

// EffectRepository stores active durational effects per owner.
type EffectRepository struct {
	db *pgxpool.Pool
}

// NewEffectRepository creates a new EffectRepository.
func NewEffectRepository(db *pgxpool.Pool) *EffectRepository {
	return &EffectRepository{db: db}
}

// LoadByOwner returns the stored effects of owner in application order.
// Prediction keys are not stored.
func (r *EffectRepository) LoadByOwner(ctx context.Context, owner actor.ID) ([]effect.Replicated, error) {
	query := `
		SELECT effect_id, definition, level, instigator, instigator_avatar, causer,
		       elapsed_ms, set_by_caller, magnitudes
		FROM active_effects
		WHERE owner = $1
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, string(owner))
	if err != nil {
		return nil, fmt.Errorf("querying effects for %s: %w", owner, err)
	}
	defer rows.Close()

	out := make([]effect.Replicated, 0, 8)
	for rows.Next() {
		var (
			e                          effect.Replicated
			id, elapsedMs              int64
			instigator, avatar, causer string
		)
		if err := rows.Scan(&id, &e.Definition, &e.Level, &instigator, &avatar, &causer,
			&elapsedMs, &e.SetByCaller, &e.Magnitudes); err != nil {
			return nil, fmt.Errorf("scanning effect row: %w", err)
		}
		e.ID = uint64(id)
		e.Instigator = actor.ID(instigator)
		e.InstigatorAvatar = actor.ID(avatar)
		e.Causer = actor.ID(causer)
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating effect rows: %w", err)
	}
	return out, nil
}

// SaveTx replaces the stored effects of owner inside tx.
func (r *EffectRepository) SaveTx(ctx context.Context, tx pgx.Tx, owner actor.ID, effects []effect.Replicated) error {
	if _, err := tx.Exec(ctx, `DELETE FROM active_effects WHERE owner = $1`, string(owner)); err != nil {
		return fmt.Errorf("deleting effects of %s: %w", owner, err)
	}

	batch := &pgx.Batch{}
	for i, e := range effects {
		sbc := e.SetByCaller
		if sbc == nil {
			sbc = map[string]float64{}
		}
		mags := e.Magnitudes
		if mags == nil {
			mags = []float64{}
		}
		batch.Queue(`
			INSERT INTO active_effects (owner, effect_id, seq, definition, level,
				instigator, instigator_avatar, causer, elapsed_ms, set_by_caller, magnitudes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			string(owner), int64(e.ID), i, e.Definition, e.Level,
			string(e.Instigator), string(e.InstigatorAvatar), string(e.Causer),
			e.Elapsed.Milliseconds(), sbc, mags,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting effects of %s: %w", owner, err)
	}
	return nil
}
