package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/errs"
	"github.com/veilcampus/warden/moderation/ladder"
)

type PunishRequest struct {
	UserHash string
	// zero escalates one level above the user's most recent punishment
	Level     ladder.Level
	ScopeType authority.ScopeType
	ScopeID   string
	Reason    string
}

// Punish applies a ladder sanction to a user. With an explicit Level the record is simply
// inserted; with Level zero the next level is computed from history and committed only if that
// history is unchanged at write time, retrying a bounded number of times otherwise.
func (eng *Engine) Punish(ctx context.Context, actor *authority.Moderator, req PunishRequest) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "Punish")
	defer span.End()
	start := time.Now()
	defer func() { observe("punish", start, out, err) }()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	reason, err := requireReason(req.Reason)
	if err != nil {
		return nil, err
	}
	if req.UserHash == "" {
		return nil, errs.Invalid("user_hash", "target user hash is required")
	}
	if req.Level != 0 && !req.Level.Valid() {
		return nil, errs.Invalid("level", "punishment level must be between %d and %d", ladder.MinLevel, ladder.MaxLevel)
	}
	scopeType, scopeID, err := parseScope(req.ScopeType, req.ScopeID)
	if err != nil {
		return nil, err
	}
	if err := eng.checkRate(actor); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("moderator", actor.ID),
		attribute.String("user", req.UserHash),
		attribute.Int("requested_level", int(req.Level)),
	)
	logger := eng.logger(actor).With("user", req.UserHash)

	unlock, err := eng.lock(ctx, userLockKey(req.UserHash))
	if err != nil {
		return nil, err
	}
	defer unlock()

	quota := eng.banQuota()
	reserved := false
	for attempt := 1; ; attempt++ {
		history, err := eng.Store.ListPunishmentHistory(ctx, req.UserHash)
		if err != nil {
			return nil, err
		}
		prevID := ""
		if latest := ladder.LatestRecord(history, req.UserHash); latest != nil {
			prevID = latest.ID
		}
		level := req.Level
		if level == 0 {
			level = ladder.GetNextPunishmentLevel(history, req.UserHash)
		}
		action := level.Action()
		entry := audit.EntryInput{
			TargetUserHash: req.UserHash,
			Reason:         reason,
			Metadata: &audit.Metadata{
				Level:     int(level),
				ScopeType: string(scopeType),
				ScopeID:   scopeID,
			},
		}

		if deny := roleCheck(actor, action); deny != "" {
			return eng.deny(ctx, logger, actor, action, deny, entry)
		}
		deny, err := eng.scopeCheck(ctx, actor, scopeType, scopeID)
		if err != nil {
			return nil, err
		}
		if deny != "" {
			return eng.deny(ctx, logger, actor, action, deny, entry)
		}

		// a reserved ban stays counted even if the write below fails
		if level == ladder.LevelPermanentBan && !reserved {
			if err := quota.Reserve(ctx, actor.ID); err != nil {
				if errors.Is(err, errs.ErrQuotaExceeded) {
					circuitBreaks.WithLabelValues("permanent-ban").Inc()
					logger.Warn("CIRCUIT BREAKER: permanent bans", "limit", quota.Limit)
					entry.Metadata.Set("circuit_breaker", quota.Name)
					if _, aerr := eng.deny(ctx, logger, actor, action, "Daily permanent ban quota reached", entry); aerr != nil {
						return nil, aerr
					}
				}
				return nil, err
			}
			reserved = true
		}

		p, err := eng.ladder().CreatePunishmentAt(eng.clock().Next(), req.UserHash, level, scopeType, scopeID, actor.ID, reason)
		if err != nil {
			return nil, errs.Invalid("punishment", "%s", err)
		}
		entry.Metadata.PunishmentID = p.ID
		entry.Metadata.ExpiresAt = p.ExpiresAt
		a, err := eng.newEntry(actor.ID, action, entry)
		if err != nil {
			return nil, err
		}
		if req.Level == 0 {
			err = eng.Store.InsertPunishmentAfter(ctx, p, prevID, a)
		} else {
			err = eng.Store.InsertPunishment(ctx, p, a)
		}
		if errors.Is(err, errs.ErrConflict) && attempt < maxEscalationAttempts {
			escalationConflicts.Inc()
			logger.Info("punishment history changed during escalation, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persisting punishment: %w", err)
		}

		recorded(a)
		punishmentsApplied.WithLabelValues(fmt.Sprint(int(level))).Inc()
		logger.Info("punishment applied", "punishment", p.ID, "level", int(level), "scope", scopeType, "scopeID", scopeID)
		eng.afterWrite(ctx, logger, actor.ID, req.UserHash, a)
		return &Outcome{Allowed: true, Punishment: p, Audit: a}, nil
	}
}

type UnbanRequest struct {
	PunishmentID string
	Reason       string
}

// Unban lifts a punishment by setting its revocation tombstone. The record stays in history; it
// stops counting for both enforcement and escalation.
//
// Lifting a permanent ban requires a role that may issue one, and a punishment applied by
// another moderator may only be lifted by someone who outranks them.
func (eng *Engine) Unban(ctx context.Context, actor *authority.Moderator, req UnbanRequest) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "Unban")
	defer span.End()
	start := time.Now()
	defer func() { observe("unban", start, out, err) }()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	reason, err := requireReason(req.Reason)
	if err != nil {
		return nil, err
	}
	if req.PunishmentID == "" {
		return nil, errs.Invalid("punishment_id", "punishment id is required")
	}
	if err := eng.checkRate(actor); err != nil {
		return nil, err
	}

	p, err := eng.Store.GetPunishment(ctx, req.PunishmentID)
	if err != nil {
		return nil, err
	}
	logger := eng.logger(actor).With("user", p.UserHash, "punishment", p.ID)

	unlock, err := eng.lock(ctx, userLockKey(p.UserHash))
	if err != nil {
		return nil, err
	}
	defer unlock()

	entry := audit.EntryInput{
		TargetUserHash: p.UserHash,
		Reason:         reason,
		Metadata: &audit.Metadata{
			Level:        int(p.Level),
			ScopeType:    string(p.ScopeType),
			ScopeID:      p.ScopeID,
			PunishmentID: p.ID,
		},
	}

	if deny := roleCheck(actor, authority.ActionUnban); deny != "" {
		return eng.deny(ctx, logger, actor, authority.ActionUnban, deny, entry)
	}
	if p.Level == ladder.LevelPermanentBan && roleCheck(actor, authority.ActionPermanentBan) != "" {
		return eng.deny(ctx, logger, actor, authority.ActionUnban, "Only roles that may issue permanent bans may lift them", entry)
	}
	deny, err := eng.scopeCheck(ctx, actor, p.ScopeType, p.ScopeID)
	if err != nil {
		return nil, err
	}
	if deny != "" {
		return eng.deny(ctx, logger, actor, authority.ActionUnban, deny, entry)
	}
	if p.AppliedBy != actor.ID {
		applier, err := eng.Store.GetModerator(ctx, p.AppliedBy)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			// applier has since been removed
		case err != nil:
			return nil, err
		case !authority.CanActOn(actor.Role, applier.Role):
			return eng.deny(ctx, logger, actor, authority.ActionUnban, "Cannot overturn a punishment applied by an equal or higher rank", entry)
		}
	}

	a, err := eng.newEntry(actor.ID, authority.ActionUnban, entry)
	if err != nil {
		return nil, err
	}
	revoked, err := eng.Store.RevokePunishment(ctx, p.ID, actor.ID, eng.clock().Next(), a)
	if err != nil {
		return nil, err
	}
	recorded(a)
	logger.Info("punishment lifted")
	eng.afterWrite(ctx, logger, actor.ID, p.UserHash, a)
	return &Outcome{Allowed: true, Punishment: revoked, Audit: a}, nil
}
