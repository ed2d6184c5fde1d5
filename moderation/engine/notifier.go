package engine

import (
	"context"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
)

// Interface for a type that can handle sending notifications
type Notifier interface {
	SendAction(ctx context.Context, a *audit.ModAction) error
}

func notifiable(a authority.Action) bool {
	switch a {
	case authority.ActionPermanentBan, authority.ActionRemoveMod:
		return true
	}
	return false
}
