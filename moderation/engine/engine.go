package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/cachestore"
	"github.com/veilcampus/warden/moderation/countstore"
	"github.com/veilcampus/warden/moderation/dominion"
	"github.com/veilcampus/warden/moderation/errs"
	"github.com/veilcampus/warden/moderation/flagstore"
	"github.com/veilcampus/warden/moderation/keylock"
	"github.com/veilcampus/warden/moderation/ladder"
	"github.com/veilcampus/warden/moderation/store"
)

var tracer = otel.Tracer("warden/engine")

const (
	// number of permanent bans a single moderator may issue per day (circuit breaker)
	DefaultPermanentBanQuota = 10
	DefaultLockTimeout       = 5 * time.Second

	// attempts at an automatic escalation that lost a race on the user's history
	maxEscalationAttempts = 3

	// system actor for bootstrap
	SystemActor = "system"
)

// Engine runs moderation requests against its collaborators.
//
// Store, Dominions, Locks, Counters, Flags and Cache must be set. Ladder, Clock, Limits and
// Notifier are optional.
type Engine struct {
	Logger    *slog.Logger
	Store     store.Store
	Dominions dominion.Directory
	Ladder    *ladder.Policy
	Locks     keylock.Locker
	Counters  countstore.CountStore
	Flags     flagstore.FlagStore
	Cache     cachestore.CacheStore
	// per-moderator sliding window limits (optional)
	Limits *RateLimits
	// receives permanent bans and moderator removals (optional)
	Notifier Notifier
	// audit and punishment timestamps; defaults to audit.DefaultClock
	Clock *audit.MonotonicClock
	// zero disables the quota
	PermanentBanQuota int
	// zero means DefaultLockTimeout
	LockTimeout time.Duration
}

// Outcome is the result of a moderation request that passed input validation.
type Outcome struct {
	Allowed bool `json:"allowed"`
	// set when Allowed is false
	Reason     string               `json:"reason,omitempty"`
	Punishment *ladder.Punishment   `json:"punishment,omitempty"`
	Moderator  *authority.Moderator `json:"moderator,omitempty"`
	Report     *UserReport          `json:"report,omitempty"`
	Audit      *audit.ModAction     `json:"audit,omitempty"`
}

func (eng *Engine) clock() *audit.MonotonicClock {
	if eng.Clock != nil {
		return eng.Clock
	}
	return audit.DefaultClock
}

func (eng *Engine) ladder() *ladder.Policy {
	if eng.Ladder != nil {
		return eng.Ladder
	}
	return ladder.DefaultPolicy()
}

func (eng *Engine) authority() *authority.Authority {
	return authority.NewAuthority(eng.Dominions)
}

func (eng *Engine) banQuota() *countstore.Quota {
	return &countstore.Quota{
		Store:  eng.Counters,
		Name:   "permanent-ban",
		Period: countstore.PeriodDay,
		Limit:  eng.PermanentBanQuota,
	}
}

func userLockKey(userHash string) string {
	return "user/" + userHash
}

func moderatorLockKey(id string) string {
	return "moderator/" + id
}

func (eng *Engine) lock(ctx context.Context, key string) (func(), error) {
	timeout := eng.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return eng.Locks.Lock(lctx, key)
}

func validateActor(actor *authority.Moderator) error {
	if actor == nil {
		return errs.Invalid("actor", "an acting moderator is required")
	}
	return actor.Validate()
}

// requireReason rejects a blank reason. A non-blank reason is returned unchanged.
func requireReason(reason string) (string, error) {
	if strings.TrimSpace(reason) == "" {
		return "", errs.Invalid("reason", "a reason is required for every moderation action")
	}
	return reason, nil
}

// parseScope normalizes a requested scope: empty means global, and a global scope drops any id.
func parseScope(st authority.ScopeType, id string) (authority.ScopeType, string, error) {
	scopeType, err := authority.ParseScopeType(string(st))
	if err != nil {
		return "", "", errs.Invalid("scope_type", "%s", err)
	}
	if scopeType == authority.ScopeGlobal {
		return scopeType, "", nil
	}
	if id == "" {
		return "", "", errs.Invalid("scope_id", "%s scope requires a scope id", scopeType)
	}
	return scopeType, id, nil
}

func (eng *Engine) checkRate(actor *authority.Moderator) error {
	if eng.Limits == nil || actor.ID == SystemActor {
		return nil
	}
	if !eng.Limits.Allow(actor.ID) {
		rateLimited.Inc()
		return fmt.Errorf("%w: moderator %s", errs.ErrRateLimited, actor.ID)
	}
	return nil
}

// roleCheck returns a deny reason, or "" when the role may take the action.
func roleCheck(actor *authority.Moderator, action authority.Action) string {
	c := authority.ValidateRoleConstraints(actor.Role, action)
	if c.Valid {
		return ""
	}
	return c.Reason
}

const (
	reasonOutOfScope       = "Target is outside your moderation scope"
	reasonUnknownTerritory = "Territory is not assigned to any dominion"
	reasonOutranked        = "Cannot act on a moderator of equal or higher rank"
)

// scopeCheck returns a deny reason, or "" when the actor's scope covers the target scope.
func (eng *Engine) scopeCheck(ctx context.Context, actor *authority.Moderator, scopeType authority.ScopeType, scopeID string) (string, error) {
	ok, err := eng.authority().CanActInScope(ctx, actor, scopeType, scopeID)
	if errors.Is(err, dominion.ErrUnknownTerritory) {
		return reasonUnknownTerritory, nil
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return reasonOutOfScope, nil
	}
	return "", nil
}

// newEntry builds an audit entry stamped by the engine clock without persisting it. Mutations
// hand it to the store so the change and its entry commit together.
func (eng *Engine) newEntry(actorID string, action authority.Action, in audit.EntryInput) (*audit.ModAction, error) {
	return audit.CreateAuditEntryAt(eng.clock().Next(), actorID, action, in)
}

// record builds and persists a standalone audit entry, for requests that change nothing else.
func (eng *Engine) record(ctx context.Context, actorID string, action authority.Action, in audit.EntryInput) (*audit.ModAction, error) {
	a, err := eng.newEntry(actorID, action, in)
	if err != nil {
		return nil, err
	}
	if err := eng.Store.AppendAuditEntry(ctx, a); err != nil {
		return nil, fmt.Errorf("appending audit entry: %w", err)
	}
	recorded(a)
	return a, nil
}

func recorded(a *audit.ModAction) {
	auditEntries.WithLabelValues(string(a.ActionType)).Inc()
}

// deny records a refused request and returns the matching Outcome.
func (eng *Engine) deny(ctx context.Context, logger *slog.Logger, actor *authority.Moderator, action authority.Action, reason string, in audit.EntryInput) (*Outcome, error) {
	var meta audit.Metadata
	if in.Metadata != nil {
		meta = in.Metadata.Clone()
	}
	meta.Denied = true
	meta.DenyReason = reason
	in.Metadata = &meta

	logger.Info("moderation request denied", "action", action, "reason", reason)
	a, err := eng.record(ctx, actor.ID, action, in)
	if err != nil {
		return nil, err
	}
	return &Outcome{Allowed: false, Reason: reason, Audit: a}, nil
}

func (eng *Engine) logger(actor *authority.Moderator) *slog.Logger {
	l := eng.Logger
	if l == nil {
		l = slog.Default()
	}
	if actor != nil {
		l = l.With("moderator", actor.ID, "role", actor.Role)
	}
	return l
}

// observe records per-operation metrics; called deferred with the final results.
func observe(op string, start time.Time, out *Outcome, err error) {
	result := "allowed"
	switch {
	case errs.IsValidation(err):
		result = "invalid"
	case err != nil:
		result = "error"
	case out != nil && !out.Allowed:
		result = "denied"
	}
	opCount.WithLabelValues(op, result).Inc()
	opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// after a successful write: bookkeeping that must not fail the request
func (eng *Engine) afterWrite(ctx context.Context, logger *slog.Logger, actorID, userHash string, a *audit.ModAction) {
	if err := eng.Counters.Increment(ctx, "mod-actions", actorID); err != nil {
		logger.Warn("failed to increment moderator action counter", "err", err)
	}
	if userHash != "" {
		eng.purgeUserCache(ctx, logger, userHash)
	}
	if a != nil && eng.Notifier != nil && notifiable(a.ActionType) {
		if err := eng.Notifier.SendAction(ctx, a); err != nil {
			notificationFailures.Inc()
			logger.Warn("failed to send moderation notification", "action", a.ActionType, "err", err)
		}
	}
}
