package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/dominion"
)

// QueryAudit returns the entries matching f that the reader may see. A nil reader (operator
// tooling) and global moderators see the whole log. Any other moderator only sees entries whose
// recorded scope lies inside their own; entries without a scope are global and hidden from them.
func (eng *Engine) QueryAudit(ctx context.Context, reader *authority.Moderator, f audit.Filter) ([]*audit.ModAction, error) {
	ctx, span := tracer.Start(ctx, "QueryAudit")
	defer span.End()

	if reader == nil || reader.ScopeType == authority.ScopeGlobal {
		return eng.Store.QueryAuditEntries(ctx, f)
	}
	span.SetAttributes(attribute.String("moderator", reader.ID), attribute.String("scope", string(reader.ScopeType)))

	limit := f.Limit
	f.Limit = 0
	all, err := eng.Store.QueryAuditEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	az := eng.authority()
	visible := make([]*audit.ModAction, 0, len(all))
	for _, a := range all {
		st := authority.ScopeType(a.Metadata.ScopeType)
		if st == "" || st == authority.ScopeGlobal {
			continue
		}
		ok, err := az.CanActInScope(ctx, reader, st, a.Metadata.ScopeID)
		if errors.Is(err, dominion.ErrUnknownTerritory) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, a)
		}
	}
	// most recent matches, like the store
	if limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	return visible, nil
}

// ExportAudit renders the entries visible to reader in the fixed comma separated export format.
func (eng *Engine) ExportAudit(ctx context.Context, reader *authority.Moderator, f audit.Filter) (string, error) {
	l, err := eng.QueryAudit(ctx, reader, f)
	if err != nil {
		return "", err
	}
	return audit.FormatAuditLog(l), nil
}

func (eng *Engine) AuditSummary(ctx context.Context, reader *authority.Moderator, f audit.Filter) (audit.Summary, error) {
	l, err := eng.QueryAudit(ctx, reader, f)
	if err != nil {
		return audit.Summary{}, err
	}
	return audit.GenerateAuditSummary(l), nil
}
