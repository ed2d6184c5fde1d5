package moderation

import (
	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/engine"
	"github.com/veilcampus/warden/moderation/ladder"
)

type Engine = engine.Engine
type Outcome = engine.Outcome
type UserReport = engine.UserReport

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type Moderator = authority.Moderator
type Role = authority.Role
type ScopeType = authority.ScopeType
type Action = authority.Action

type Punishment = ladder.Punishment
type Level = ladder.Level
type UserAction = ladder.UserAction
type Decision = ladder.Decision

type ModAction = audit.ModAction
type AuditFilter = audit.Filter
type AuditSummary = audit.Summary

var (
	ScopeGlobal    = authority.ScopeGlobal
	ScopeDominion  = authority.ScopeDominion
	ScopeTerritory = authority.ScopeTerritory

	UserPost    = ladder.UserPost
	UserComment = ladder.UserComment
	UserLike    = ladder.UserLike
	UserChat    = ladder.UserChat
)
