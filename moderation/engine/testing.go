package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/cachestore"
	"github.com/veilcampus/warden/moderation/countstore"
	"github.com/veilcampus/warden/moderation/dominion"
	"github.com/veilcampus/warden/moderation/flagstore"
	"github.com/veilcampus/warden/moderation/keylock"
	"github.com/veilcampus/warden/moderation/ladder"
	"github.com/veilcampus/warden/moderation/store"
)

// EngineTestFixture returns an engine wired entirely to in-memory collaborators, with two
// dominions: "north" (territories t-north-1, t-north-2) and "south" (t-south-1).
func EngineTestFixture() *Engine {
	dir := dominion.NewStaticDirectory()
	dir.Add("north", "t-north-1", "t-north-2")
	dir.Add("south", "t-south-1")
	return &Engine{
		Logger:            slog.Default(),
		Store:             store.NewMemStore(),
		Dominions:         dir,
		Ladder:            ladder.DefaultPolicy(),
		Locks:             keylock.NewMemLocker(),
		Counters:          countstore.NewMemCountStore(),
		Flags:             flagstore.NewMemFlagStore(),
		Cache:             cachestore.NewMemCacheStore(100, time.Hour),
		Clock:             &audit.MonotonicClock{},
		PermanentBanQuota: DefaultPermanentBanQuota,
	}
}

// SeedModerators inserts one moderator per role, keyed by role name. Scopes: prime_sovereign,
// the_hand and crowned_king are global; steward holds dominion "north"; marshal, sentinel and
// veil_watcher hold territory "t-north-1".
func SeedModerators(ctx context.Context, eng *Engine) (map[authority.Role]*authority.Moderator, error) {
	cast := []*authority.Moderator{
		{ID: "mod-prime", Role: authority.RolePrimeSovereign, ScopeType: authority.ScopeGlobal},
		{ID: "mod-hand", Role: authority.RoleTheHand, ScopeType: authority.ScopeGlobal},
		{ID: "mod-king", Role: authority.RoleCrownedKing, ScopeType: authority.ScopeGlobal},
		{ID: "mod-steward", Role: authority.RoleSteward, ScopeType: authority.ScopeDominion, ScopeID: "north"},
		{ID: "mod-marshal", Role: authority.RoleMarshal, ScopeType: authority.ScopeTerritory, ScopeID: "t-north-1"},
		{ID: "mod-sentinel", Role: authority.RoleSentinel, ScopeType: authority.ScopeTerritory, ScopeID: "t-north-1"},
		{ID: "mod-watcher", Role: authority.RoleVeilWatcher, ScopeType: authority.ScopeTerritory, ScopeID: "t-north-1"},
	}
	out := make(map[authority.Role]*authority.Moderator, len(cast))
	for _, m := range cast {
		m.AppointedBy = SystemActor
		m.CreatedAt = eng.clock().Next()
		if err := eng.Store.InsertModerator(ctx, m, nil); err != nil {
			return nil, err
		}
		out[m.Role] = m
	}
	return out, nil
}

// RecordingNotifier keeps every notification it is sent.
type RecordingNotifier struct {
	lk   sync.Mutex
	Sent []*audit.ModAction
}

func (n *RecordingNotifier) SendAction(ctx context.Context, a *audit.ModAction) error {
	n.lk.Lock()
	defer n.lk.Unlock()
	n.Sent = append(n.Sent, a)
	return nil
}

func (n *RecordingNotifier) Count() int {
	n.lk.Lock()
	defer n.lk.Unlock()
	return len(n.Sent)
}
