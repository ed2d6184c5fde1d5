// Lookup of the dominion that owns a territory.
//
// Territories are the smallest moderation scope; each belongs to exactly one dominion. A
// dominion-scoped moderator may act in a territory only when this lookup names their dominion.
package dominion

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownTerritory = errors.New("unknown territory")

type Directory interface {
	DominionOf(ctx context.Context, territoryID string) (string, error)
}

func unknown(territoryID string) error {
	return fmt.Errorf("%w: %s", ErrUnknownTerritory, territoryID)
}
