package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/countstore"
	"github.com/veilcampus/warden/moderation/errs"
	"github.com/veilcampus/warden/moderation/ladder"
	"github.com/veilcampus/warden/moderation/store"
)

type ContentRequest struct {
	ContentID string
	// author of the content, if known
	AuthorHash string
	ScopeType  authority.ScopeType
	ScopeID    string
	Reason     string
}

// RemoveContent records the removal of a piece of content. Content storage lives elsewhere; the
// caller hides the content once the outcome is allowed.
func (eng *Engine) RemoveContent(ctx context.Context, actor *authority.Moderator, req ContentRequest) (*Outcome, error) {
	return eng.contentAction(ctx, actor, authority.ActionContentRemove, req)
}

func (eng *Engine) RestoreContent(ctx context.Context, actor *authority.Moderator, req ContentRequest) (*Outcome, error) {
	return eng.contentAction(ctx, actor, authority.ActionContentRestore, req)
}

func (eng *Engine) contentAction(ctx context.Context, actor *authority.Moderator, action authority.Action, req ContentRequest) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, string(action))
	defer span.End()
	start := time.Now()
	defer func() { observe(string(action), start, out, err) }()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	reason, err := requireReason(req.Reason)
	if err != nil {
		return nil, err
	}
	if req.ContentID == "" {
		return nil, errs.Invalid("content_id", "content id is required")
	}
	scopeType, scopeID, err := parseScope(req.ScopeType, req.ScopeID)
	if err != nil {
		return nil, err
	}
	if err := eng.checkRate(actor); err != nil {
		return nil, err
	}
	logger := eng.logger(actor).With("content", req.ContentID)

	entry := audit.EntryInput{
		TargetUserHash:  req.AuthorHash,
		TargetContentID: req.ContentID,
		Reason:          reason,
		Metadata: &audit.Metadata{
			ScopeType: string(scopeType),
			ScopeID:   scopeID,
		},
	}
	return eng.checkAndRecord(ctx, logger, actor, action, scopeType, scopeID, entry)
}

// checkAndRecord is the shape shared by actions whose only effect is the audit entry.
func (eng *Engine) checkAndRecord(ctx context.Context, l *slog.Logger, actor *authority.Moderator, action authority.Action, scopeType authority.ScopeType, scopeID string, entry audit.EntryInput) (*Outcome, error) {
	if deny := roleCheck(actor, action); deny != "" {
		return eng.deny(ctx, l, actor, action, deny, entry)
	}
	deny, err := eng.scopeCheck(ctx, actor, scopeType, scopeID)
	if err != nil {
		return nil, err
	}
	if deny != "" {
		return eng.deny(ctx, l, actor, action, deny, entry)
	}
	a, err := eng.record(ctx, actor.ID, action, entry)
	if err != nil {
		return nil, err
	}
	l.Info("moderation action recorded", "action", action)
	eng.afterWrite(ctx, l, actor.ID, "", a)
	return &Outcome{Allowed: true, Audit: a}, nil
}

type WarnRequest struct {
	UserHash  string
	ScopeType authority.ScopeType
	ScopeID   string
	Reason    string
}

// WarnUser records a warning. Warnings carry severity but never restrict the user.
func (eng *Engine) WarnUser(ctx context.Context, actor *authority.Moderator, req WarnRequest) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "WarnUser")
	defer span.End()
	start := time.Now()
	defer func() { observe("warn", start, out, err) }()

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
	scopeType, scopeID, err := parseScope(req.ScopeType, req.ScopeID)
	if err != nil {
		return nil, err
	}
	if err := eng.checkRate(actor); err != nil {
		return nil, err
	}
	logger := eng.logger(actor).With("user", req.UserHash)
	entry := audit.EntryInput{
		TargetUserHash: req.UserHash,
		Reason:         reason,
		Metadata: &audit.Metadata{
			ScopeType: string(scopeType),
			ScopeID:   scopeID,
		},
	}
	return eng.checkAndRecord(ctx, logger, actor, authority.ActionUserWarn, scopeType, scopeID, entry)
}

type FlagRequest struct {
	UserHash string
	// eg "pattern:burst-reposts"
	Flags  []string
	Reason string
}

// FlagUser attaches private pattern flags to a user for review by a higher role. Flags restrict
// nothing on their own.
func (eng *Engine) FlagUser(ctx context.Context, actor *authority.Moderator, req FlagRequest) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "FlagUser")
	defer span.End()
	start := time.Now()
	defer func() { observe("flag", start, out, err) }()

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
	flags := make([]string, 0, len(req.Flags))
	for _, f := range req.Flags {
		if f = strings.TrimSpace(f); f != "" {
			flags = append(flags, f)
		}
	}
	if len(flags) == 0 {
		return nil, errs.Invalid("flags", "at least one flag is required")
	}
	slices.Sort(flags)
	flags = slices.Compact(flags)
	if err := eng.checkRate(actor); err != nil {
		return nil, err
	}
	logger := eng.logger(actor).With("user", req.UserHash)

	meta := &audit.Metadata{}
	meta.Set("flags", strings.Join(flags, ","))
	entry := audit.EntryInput{
		TargetUserHash: req.UserHash,
		Reason:         reason,
		Metadata:       meta,
	}
	if deny := roleCheck(actor, authority.ActionDetectPatterns); deny != "" {
		return eng.deny(ctx, logger, actor, authority.ActionDetectPatterns, deny, entry)
	}
	if err := eng.Flags.Add(ctx, req.UserHash, flags); err != nil {
		return nil, err
	}
	a, err := eng.record(ctx, actor.ID, authority.ActionDetectPatterns, entry)
	if err != nil {
		return nil, err
	}
	logger.Info("user flagged", "flags", flags)
	eng.afterWrite(ctx, logger, actor.ID, "", a)
	return &Outcome{Allowed: true, Audit: a}, nil
}

// UserReport gathers everything known about a user hash for review.
type UserReport struct {
	UserHash string               `json:"user_hash"`
	Flags    []string             `json:"flags"`
	History  []*ladder.Punishment `json:"history"`
	// nil when the user is not punished anywhere globally
	Effective *ladder.Punishment `json:"effective,omitempty"`
	Profile   *store.Profile     `json:"profile,omitempty"`

	ActionsToday       int `json:"actions_today"`
	DistinctKindsToday int `json:"distinct_kinds_today"`
}

type InspectRequest struct {
	UserHash string
	Reason   string
}

// InspectUser returns a UserReport. Access to correlation data is audited like any other action.
func (eng *Engine) InspectUser(ctx context.Context, actor *authority.Moderator, req InspectRequest) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "InspectUser")
	defer span.End()
	start := time.Now()
	defer func() { observe("inspect", start, out, err) }()

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
	logger := eng.logger(actor).With("user", req.UserHash)
	entry := audit.EntryInput{
		TargetUserHash: req.UserHash,
		Reason:         reason,
	}
	if deny := roleCheck(actor, authority.ActionReviewReports); deny != "" {
		return eng.deny(ctx, logger, actor, authority.ActionReviewReports, deny, entry)
	}

	rep := &UserReport{UserHash: req.UserHash}
	if rep.Flags, err = eng.Flags.Get(ctx, req.UserHash); err != nil {
		return nil, err
	}
	if rep.History, err = eng.Store.ListPunishmentHistory(ctx, req.UserHash); err != nil {
		return nil, err
	}
	rep.Effective = ladder.EffectiveAt(time.Now(), rep.History, req.UserHash, "", "")
	rep.Profile, err = eng.Store.GetProfile(ctx, req.UserHash)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if rep.ActionsToday, err = eng.Counters.GetCount(ctx, "activity", req.UserHash, countstore.PeriodDay); err != nil {
		return nil, err
	}
	if rep.DistinctKindsToday, err = eng.Counters.GetCountDistinct(ctx, "activity-kinds", req.UserHash, countstore.PeriodDay); err != nil {
		return nil, err
	}

	a, err := eng.record(ctx, actor.ID, authority.ActionReviewReports, entry)
	if err != nil {
		return nil, err
	}
	return &Outcome{Allowed: true, Report: rep, Audit: a}, nil
}
