package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/veilcampus/warden/moderation/cachestore"
	"github.com/veilcampus/warden/moderation/dominion"
	"github.com/veilcampus/warden/moderation/errs"
	"github.com/veilcampus/warden/moderation/fingerprint"
	"github.com/veilcampus/warden/moderation/ladder"
	"github.com/veilcampus/warden/moderation/store"
)

const activeCacheName = "active-punishments"

// activePunishments returns the user's records that were unrevoked and unexpired when last
// loaded. Callers still evaluate expiry against the current time.
//
// Cached lists are stamped with the store's punishment version, read before the history. A list
// whose version is behind the store was loaded before some write and is reloaded, so a fill that
// raced Punish or Unban is never served.
func (eng *Engine) activePunishments(ctx context.Context, userHash string) ([]*ladder.Punishment, error) {
	version, err := eng.Store.PunishmentVersion(ctx, userHash)
	if err != nil {
		return nil, err
	}
	if eng.Cache != nil {
		e, err := eng.Cache.Get(ctx, activeCacheName, userHash)
		switch {
		case err != nil:
			eng.logger(nil).Warn("active punishment cache read failed", "user", userHash, "err", err)
		case e != nil && e.Version == version:
			var l []*ladder.Punishment
			if err := json.Unmarshal([]byte(e.Value), &l); err == nil {
				activeCacheHits.Inc()
				return l, nil
			}
		case e != nil:
			activeCacheStale.Inc()
		}
	}
	activeCacheMisses.Inc()

	history, err := eng.Store.ListPunishmentHistory(ctx, userHash)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	active := make([]*ladder.Punishment, 0, len(history))
	for _, p := range history {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}
	if eng.Cache != nil {
		if b, err := json.Marshal(active); err == nil {
			e := cachestore.Entry{Version: version, Value: string(b)}
			if err := eng.Cache.Set(ctx, activeCacheName, userHash, e); err != nil {
				eng.logger(nil).Warn("active punishment cache write failed", "user", userHash, "err", err)
			}
		}
	}
	return active, nil
}

func (eng *Engine) purgeUserCache(ctx context.Context, logger *slog.Logger, userHash string) {
	if eng.Cache == nil {
		return
	}
	if err := eng.Cache.Purge(ctx, activeCacheName, userHash); err != nil {
		logger.Error("failed to purge active punishment cache", "user", userHash, "err", err)
	}
}

// dominionOf resolves the dominion for enforcement. A territory with no dominion still matches
// global and territory-scoped punishments.
func (eng *Engine) dominionOf(ctx context.Context, territoryID string) (string, error) {
	if territoryID == "" || eng.Dominions == nil {
		return "", nil
	}
	dom, err := eng.Dominions.DominionOf(ctx, territoryID)
	if errors.Is(err, dominion.ErrUnknownTerritory) {
		return "", nil
	}
	return dom, err
}

// EffectivePunishment returns the punishment in force for a user in a territory ("" for no
// particular territory), or nil.
func (eng *Engine) EffectivePunishment(ctx context.Context, userHash, territoryID string) (*ladder.Punishment, error) {
	ctx, span := tracer.Start(ctx, "EffectivePunishment")
	defer span.End()

	dom, err := eng.dominionOf(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	active, err := eng.activePunishments(ctx, userHash)
	if err != nil {
		return nil, err
	}
	return ladder.EffectiveAt(time.Now(), active, userHash, territoryID, dom), nil
}

// CanUserAct gates a feed action. Shadow-banned users are always allowed, so they cannot tell
// they are sanctioned.
func (eng *Engine) CanUserAct(ctx context.Context, userHash, territoryID string, action ladder.UserAction) (ladder.Decision, error) {
	p, err := eng.EffectivePunishment(ctx, userHash, territoryID)
	if err != nil {
		return ladder.Decision{}, err
	}
	d := ladder.CanUserAct(p, action)
	enforcementChecks.WithLabelValues(string(action), boolLabel(d.Allowed)).Inc()
	return d, nil
}

func (eng *Engine) IsContentVisible(ctx context.Context, viewerHash, authorHash, territoryID string) (bool, error) {
	if viewerHash == authorHash {
		return true, nil
	}
	p, err := eng.EffectivePunishment(ctx, authorHash, territoryID)
	if err != nil {
		return false, err
	}
	return ladder.IsContentVisible(viewerHash, authorHash, p), nil
}

// RecordActivity folds one observed action into the user's behavior profile.
func (eng *Engine) RecordActivity(ctx context.Context, userHash string, act fingerprint.Activity, tzOffsetMinutes int) (*store.Profile, error) {
	ctx, span := tracer.Start(ctx, "RecordActivity")
	defer span.End()

	if userHash == "" {
		return nil, errs.Invalid("user_hash", "user hash is required")
	}
	if act.At.IsZero() {
		act.At = time.Now()
	}

	unlock, err := eng.lock(ctx, userLockKey(userHash))
	if err != nil {
		return nil, err
	}
	defer unlock()

	prof, err := eng.Store.GetProfile(ctx, userHash)
	if errors.Is(err, errs.ErrNotFound) {
		prof = &store.Profile{
			UserHash:  userHash,
			Signature: fingerprint.InitBehaviorSignature(),
			Pattern:   fingerprint.InitTimePattern(),
		}
		// first sighting is the activity itself, not the moment it was recorded
		at := act.At.UTC()
		prof.Signature.FirstSeen, prof.Signature.LastSeen = at, at
		prof.Pattern.FirstSeen, prof.Pattern.LastSeen = at, at
	} else if err != nil {
		return nil, err
	}

	prof.Signature = fingerprint.UpdateBehaviorSignature(prof.Signature, act)
	prof.Pattern = fingerprint.TouchTimePattern(prof.Pattern, act.At, tzOffsetMinutes)
	prof.UpdatedAt = time.Now().UTC()
	if err := eng.Store.PutProfile(ctx, prof); err != nil {
		return nil, err
	}

	if act.Kind != "" {
		if err := eng.Counters.Increment(ctx, "activity", userHash); err != nil {
			eng.logger(nil).Warn("failed to count activity", "user", userHash, "err", err)
		}
		if err := eng.Counters.IncrementDistinct(ctx, "activity-kinds", userHash, act.Kind); err != nil {
			eng.logger(nil).Warn("failed to count activity kind", "user", userHash, "err", err)
		}
	}
	return prof, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
