package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/errs"
)

// Bootstrap installs the first prime_sovereign. It is the only way to create a Moderator without
// an appointer, and fails with errs.ErrConflict once any moderator exists.
func (eng *Engine) Bootstrap(ctx context.Context, moderatorID string) (*authority.Moderator, error) {
	ctx, span := tracer.Start(ctx, "Bootstrap")
	defer span.End()

	unlock, err := eng.lock(ctx, "bootstrap")
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := eng.Store.ListModerators(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: moderators already exist", errs.ErrConflict)
	}

	m := &authority.Moderator{
		ID:          moderatorID,
		Role:        authority.RolePrimeSovereign,
		ScopeType:   authority.ScopeGlobal,
		AppointedBy: SystemActor,
		CreatedAt:   eng.clock().Next(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	a, err := eng.newEntry(SystemActor, authority.ActionAppointMod, audit.EntryInput{
		Reason: "initial prime sovereign",
		Metadata: &audit.Metadata{
			AppointedRole:      string(m.Role),
			SubjectModeratorID: m.ID,
			ScopeType:          string(m.ScopeType),
		},
	})
	if err != nil {
		return nil, err
	}
	if err := eng.Store.InsertModerator(ctx, m, a); err != nil {
		return nil, err
	}
	recorded(a)
	eng.logger(nil).Info("bootstrapped prime sovereign", "moderator", m.ID)
	return m, nil
}

type AppointRequest struct {
	ModeratorID string
	Role        authority.Role
	ScopeType   authority.ScopeType
	ScopeID     string
	Reason      string
}

// Appoint creates a Moderator. A role outside the actor's appointable set is a ValidationError
// and writes nothing; a scope outside the actor's own scope is an audited denial.
func (eng *Engine) Appoint(ctx context.Context, actor *authority.Moderator, req AppointRequest) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "Appoint")
	defer span.End()
	start := time.Now()
	defer func() { observe("appoint", start, out, err) }()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	reason, err := requireReason(req.Reason)
	if err != nil {
		return nil, err
	}
	scopeType, scopeID, err := parseScope(req.ScopeType, req.ScopeID)
	if err != nil {
		return nil, err
	}
	m := &authority.Moderator{
		ID:          req.ModeratorID,
		Role:        req.Role,
		ScopeType:   scopeType,
		ScopeID:     scopeID,
		AppointedBy: actor.ID,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !authority.CanAppoint(actor.Role, m.Role) {
		return nil, errs.Invalid("role", "%s may not appoint %s", actor.Role.Title(), m.Role.Title())
	}
	if err := eng.checkRate(actor); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("moderator", actor.ID), attribute.String("subject", m.ID))
	logger := eng.logger(actor).With("subject", m.ID)

	entry := audit.EntryInput{
		Reason: reason,
		Metadata: &audit.Metadata{
			AppointedRole:      string(m.Role),
			SubjectModeratorID: m.ID,
			ScopeType:          string(scopeType),
			ScopeID:            scopeID,
		},
	}
	if deny := roleCheck(actor, authority.ActionAppointMod); deny != "" {
		return eng.deny(ctx, logger, actor, authority.ActionAppointMod, deny, entry)
	}
	deny, err := eng.scopeCheck(ctx, actor, scopeType, scopeID)
	if err != nil {
		return nil, err
	}
	if deny != "" {
		return eng.deny(ctx, logger, actor, authority.ActionAppointMod, deny, entry)
	}

	unlock, err := eng.lock(ctx, moderatorLockKey(m.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	m.CreatedAt = eng.clock().Next()
	a, err := eng.newEntry(actor.ID, authority.ActionAppointMod, entry)
	if err != nil {
		return nil, err
	}
	if err := eng.Store.InsertModerator(ctx, m, a); err != nil {
		return nil, err
	}
	recorded(a)
	logger.Info("moderator appointed", "appointedRole", m.Role, "scope", m.ScopeType, "scopeID", m.ScopeID)
	eng.afterWrite(ctx, logger, actor.ID, "", a)
	return &Outcome{Allowed: true, Moderator: m, Audit: a}, nil
}

type RemoveModeratorRequest struct {
	ModeratorID string
	Reason      string
}

// RemoveModerator deletes a Moderator the actor strictly outranks and whose scope the actor
// covers.
func (eng *Engine) RemoveModerator(ctx context.Context, actor *authority.Moderator, req RemoveModeratorRequest) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "RemoveModerator")
	defer span.End()
	start := time.Now()
	defer func() { observe("remove_moderator", start, out, err) }()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	reason, err := requireReason(req.Reason)
	if err != nil {
		return nil, err
	}
	if req.ModeratorID == "" {
		return nil, errs.Invalid("moderator_id", "moderator id is required")
	}
	if err := eng.checkRate(actor); err != nil {
		return nil, err
	}
	logger := eng.logger(actor).With("subject", req.ModeratorID)

	unlock, err := eng.lock(ctx, moderatorLockKey(req.ModeratorID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	subject, err := eng.Store.GetModerator(ctx, req.ModeratorID)
	if err != nil {
		return nil, err
	}
	entry := audit.EntryInput{
		Reason: reason,
		Metadata: &audit.Metadata{
			AppointedRole:      string(subject.Role),
			SubjectModeratorID: subject.ID,
			ScopeType:          string(subject.ScopeType),
			ScopeID:            subject.ScopeID,
		},
	}
	if deny := roleCheck(actor, authority.ActionRemoveMod); deny != "" {
		return eng.deny(ctx, logger, actor, authority.ActionRemoveMod, deny, entry)
	}
	if !authority.CanActOn(actor.Role, subject.Role) {
		return eng.deny(ctx, logger, actor, authority.ActionRemoveMod, reasonOutranked, entry)
	}
	deny, err := eng.scopeCheck(ctx, actor, subject.ScopeType, subject.ScopeID)
	if err != nil {
		return nil, err
	}
	if deny != "" {
		return eng.deny(ctx, logger, actor, authority.ActionRemoveMod, deny, entry)
	}

	a, err := eng.newEntry(actor.ID, authority.ActionRemoveMod, entry)
	if err != nil {
		return nil, err
	}
	if err := eng.Store.DeleteModerator(ctx, subject.ID, a); err != nil {
		return nil, err
	}
	recorded(a)
	logger.Info("moderator removed", "removedRole", subject.Role)
	eng.afterWrite(ctx, logger, actor.ID, "", a)
	return &Outcome{Allowed: true, Moderator: subject, Audit: a}, nil
}

func (eng *Engine) GetModerator(ctx context.Context, id string) (*authority.Moderator, error) {
	return eng.Store.GetModerator(ctx, id)
}

func (eng *Engine) ListModerators(ctx context.Context) ([]*authority.Moderator, error) {
	return eng.Store.ListModerators(ctx)
}
