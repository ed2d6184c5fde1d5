package audit

import (
	"time"
)

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Summary struct {
	TotalActions    int            `json:"totalActions"`
	ByType          map[string]int `json:"byType"`
	ByModerator     map[string]int `json:"byModerator"`
	AverageSeverity float64        `json:"averageSeverity"`
	// nil when there are no actions
	DateRange *DateRange `json:"dateRange"`
}

func GenerateAuditSummary(actions []*ModAction) Summary {
	s := Summary{
		ByType:      map[string]int{},
		ByModerator: map[string]int{},
	}
	severityTotal := 0
	for _, a := range actions {
		if a == nil {
			continue
		}
		s.TotalActions++
		s.ByType[string(a.ActionType)]++
		s.ByModerator[a.ModeratorID]++
		severityTotal += GetActionSeverity(a.ActionType)
		if s.DateRange == nil {
			s.DateRange = &DateRange{Start: a.CreatedAt, End: a.CreatedAt}
			continue
		}
		if a.CreatedAt.Before(s.DateRange.Start) {
			s.DateRange.Start = a.CreatedAt
		}
		if a.CreatedAt.After(s.DateRange.End) {
			s.DateRange.End = a.CreatedAt
		}
	}
	if s.TotalActions > 0 {
		s.AverageSeverity = float64(severityTotal) / float64(s.TotalActions)
	}
	return s
}
