package profiles

import (
	"context"

	"github.com/improstack/impro-engine/internal/models"
)

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, profiles []models.PerformerProfile) error

// StoreProfiles implements Store.
func (f StoreFunc) StoreProfiles(ctx context.Context, profiles []models.PerformerProfile) error {
	return f(ctx, profiles)
}
