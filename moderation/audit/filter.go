package audit

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/errs"
)

// Filter selects audit entries. Zero-valued fields are not applied; an entry passes only if it
// satisfies every supplied field.
type Filter struct {
	ModeratorID    string
	ActionType     authority.Action
	TargetUserHash string
	MinSeverity    *int
	StartDate      *time.Time
	EndDate        *time.Time
	// 0 means unlimited; only honored by stores
	Limit int
}

func (f *Filter) Match(a *ModAction) bool {
	if a == nil {
		return false
	}
	if f.ModeratorID != "" && a.ModeratorID != f.ModeratorID {
		return false
	}
	if f.ActionType != "" && a.ActionType != f.ActionType {
		return false
	}
	if f.TargetUserHash != "" && a.TargetUserHash != f.TargetUserHash {
		return false
	}
	if f.MinSeverity != nil && GetActionSeverity(a.ActionType) < *f.MinSeverity {
		return false
	}
	if f.StartDate != nil && a.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && a.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}

// FilterAuditLogs returns the entries matching every supplied filter, in input order.
func FilterAuditLogs(actions []*ModAction, f Filter) []*ModAction {
	out := make([]*ModAction, 0, len(actions))
	for _, a := range actions {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

// FilterParams is the string form of a Filter, as received from query parameters or flags.
type FilterParams struct {
	ModeratorID    string
	ActionType     string
	TargetUserHash string
	MinSeverity    string
	StartDate      string
	EndDate        string
	Limit          string
}

// ParseFilter validates string parameters. Dates are accepted in any format dateparse
// recognizes; a malformed date, a negative severity, or an inverted range is a ValidationError.
func ParseFilter(p FilterParams) (Filter, error) {
	f := Filter{
		ModeratorID:    strings.TrimSpace(p.ModeratorID),
		ActionType:     authority.Action(strings.TrimSpace(p.ActionType)),
		TargetUserHash: strings.TrimSpace(p.TargetUserHash),
	}
	if s := strings.TrimSpace(p.MinSeverity); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Filter{}, errs.Invalid("min_severity", "expected a non-negative integer, got %q", s)
		}
		f.MinSeverity = &n
	}
	if s := strings.TrimSpace(p.StartDate); s != "" {
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return Filter{}, errs.Invalid("start_date", "unrecognized date %q", s)
		}
		t = t.UTC()
		f.StartDate = &t
	}
	if s := strings.TrimSpace(p.EndDate); s != "" {
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return Filter{}, errs.Invalid("end_date", "unrecognized date %q", s)
		}
		t = t.UTC()
		f.EndDate = &t
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return Filter{}, errs.Invalid("end_date", "end date is before start date")
	}
	if s := strings.TrimSpace(p.Limit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Filter{}, errs.Invalid("limit", "expected a non-negative integer, got %q", s)
		}
		f.Limit = n
	}
	return f, nil
}
