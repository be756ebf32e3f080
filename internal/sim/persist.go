package sim

import (
	"context"
	"fmt"

	"github.com/udisondev/gameplayfx/internal/game/abilitysystem"
	"github.com/udisondev/gameplayfx/internal/game/actor"
)

// Store persists component state per owner. db.StatePersistenceService
// implements it.
type Store interface {
	SaveState(ctx context.Context, owner actor.ID, st abilitysystem.State) error
	LoadState(ctx context.Context, owner actor.ID) (abilitysystem.State, error)
}

// Restore loads stored state into every authoritative component. Owners with
// nothing stored keep their archetype defaults. Call before the first tick.
func (w *World) Restore(ctx context.Context, store Store) error {
	for _, id := range w.order {
		st, err := store.LoadState(ctx, id)
		if err != nil {
			return fmt.Errorf("loading %s: %w", id, err)
		}
		if len(st.Bases) == 0 && len(st.Effects) == 0 {
			continue
		}
		n, err := w.actors[id].Restore(st)
		if err != nil {
			return fmt.Errorf("restoring %s: %w", id, err)
		}
		w.logger.Info("actor state restored", "actor", id, "effects", n)
	}
	return nil
}

// Save stores the state of every authoritative component.
func (w *World) Save(ctx context.Context, store Store) error {
	for _, id := range w.order {
		if err := store.SaveState(ctx, id, w.actors[id].Snapshot()); err != nil {
			return fmt.Errorf("saving %s: %w", id, err)
		}
	}
	return nil
}
