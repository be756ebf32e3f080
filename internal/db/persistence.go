package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/gameplayfx/internal/game/abilitysystem"
	"github.com/udisondev/gameplayfx/internal/game/actor"
)

// StatePersistenceService saves and loads the persistent state of an
// ability system component.
type StatePersistenceService struct {
	pool       *pgxpool.Pool
	attributes *AttributeRepository
	effects    *EffectRepository
}

// NewStatePersistenceService creates a new service over pool.
func NewStatePersistenceService(pool *pgxpool.Pool) *StatePersistenceService {
	return &StatePersistenceService{
		pool:       pool,
		attributes: NewAttributeRepository(pool),
		effects:    NewEffectRepository(pool),
	}
}

// SaveState replaces the stored state of owner in a single transaction.
func (s *StatePersistenceService) SaveState(ctx context.Context, owner actor.ID, st abilitysystem.State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", owner, err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "owner", owner, "error", err)
		}
	}()

	if err := s.attributes.SaveTx(ctx, tx, owner, st.Bases); err != nil {
		return fmt.Errorf("saving attributes for %s: %w", owner, err)
	}
	if err := s.effects.SaveTx(ctx, tx, owner, st.Effects); err != nil {
		return fmt.Errorf("saving effects for %s: %w", owner, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit state of %s: %w", owner, err)
	}

	slog.Debug("actor state saved", "owner", owner, "attributes", len(st.Bases), "effects", len(st.Effects))
	return nil
}

// LoadState loads the stored state of owner. An owner with nothing stored
// yields an empty state.
func (s *StatePersistenceService) LoadState(ctx context.Context, owner actor.ID) (abilitysystem.State, error) {
	bases, err := s.attributes.LoadByOwner(ctx, owner)
	if err != nil {
		return abilitysystem.State{}, fmt.Errorf("loading attributes for %s: %w", owner, err)
	}
	effects, err := s.effects.LoadByOwner(ctx, owner)
	if err != nil {
		return abilitysystem.State{}, fmt.Errorf("loading effects for %s: %w", owner, err)
	}
	return abilitysystem.State{Bases: bases, Effects: effects}, nil
}
