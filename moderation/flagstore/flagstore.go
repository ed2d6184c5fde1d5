// Sets of string flags attached to subjects (user hashes, content ids).
//
// Flags are advisory markers left by detection roles, such as "pattern:burst-reposts", that a
// higher role reviews before acting. They never restrict a user by themselves.
package flagstore

import (
	"context"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	Remove(ctx context.Context, key string, flags []string) error
}
