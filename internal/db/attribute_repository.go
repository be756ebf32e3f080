package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/attribute"
)

// AttributeRepository stores attribute base values per owner.
type AttributeRepository struct {
	db *pgxpool.Pool
}

// NewAttributeRepository creates a new AttributeRepository.
func NewAttributeRepository(db *pgxpool.Pool) *AttributeRepository {
	return &AttributeRepository{db: db}
}

// LoadByOwner loads every stored base value of owner.
func (r *AttributeRepository) LoadByOwner(ctx context.Context, owner actor.ID) (map[attribute.Attribute]float64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT attribute, base FROM actor_attributes WHERE owner = $1`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("querying attributes for %s: %w", owner, err)
	}
	defer rows.Close()

	bases := make(map[attribute.Attribute]float64, 8)
	for rows.Next() {
		var (
			name string
			base float64
		)
		if err := rows.Scan(&name, &base); err != nil {
			return nil, fmt.Errorf("scanning attribute row: %w", err)
		}
		bases[attribute.Attribute(name)] = base
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attribute rows: %w", err)
	}
	return bases, nil
}

// SaveTx replaces the stored base values of owner inside tx.
func (r *AttributeRepository) SaveTx(ctx context.Context, tx pgx.Tx, owner actor.ID, bases map[attribute.Attribute]float64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM actor_attributes WHERE owner = $1`, string(owner)); err != nil {
		return fmt.Errorf("deleting attributes of %s: %w", owner, err)
	}

	batch := &pgx.Batch{}
	for attr, base := range bases {
		batch.Queue(`INSERT INTO actor_attributes (owner, attribute, base) VALUES ($1, $2, $3)`,
			string(owner), string(attr), base)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting attributes of %s: %w", owner, err)
	}
	return nil
}
