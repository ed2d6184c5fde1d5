package audit

import (
	"encoding/json"
	"maps"
	"time"
)

// Metadata is the typed metadata attached to an audit entry. The named fields are the
// well-known keys; anything else goes in Extra and is carried through untouched.
type Metadata struct {
	// server timestamp; always set by CreateAuditEntry
	Timestamp time.Time `json:"timestamp"`
	// static description of the action kind; always set by CreateAuditEntry
	Description string `json:"description,omitempty"`

	Level        int        `json:"level,omitempty"`
	ScopeType    string     `json:"scope_type,omitempty"`
	ScopeID      string     `json:"scope_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	PunishmentID string     `json:"punishment_id,omitempty"`

	AppointedRole      string `json:"appointed_role,omitempty"`
	SubjectModeratorID string `json:"subject_moderator_id,omitempty"`

	// set when the request was refused by an authority or ladder check
	Denied     bool   `json:"denied,omitempty"`
	DenyReason string `json:"deny_reason,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

func (m Metadata) Clone() Metadata {
	out := m
	if m.ExpiresAt != nil {
		exp := *m.ExpiresAt
		out.ExpiresAt = &exp
	}
	out.Extra = maps.Clone(m.Extra)
	return out
}

// Set stores a passthrough key.
func (m *Metadata) Set(key, val string) {
	if m.Extra == nil {
		m.Extra = make(map[string]string)
	}
	m.Extra[key] = val
}

// Text renders the metadata as compact JSON, the representation used by exports and storage.
func (m Metadata) Text() string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func ParseMetadata(raw string) (Metadata, error) {
	var m Metadata
	if raw == "" {
		return m, nil
	}
	err := json.Unmarshal([]byte(raw), &m)
	return m, err
}
