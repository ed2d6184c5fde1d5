package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/errs"
	"github.com/veilcampus/warden/moderation/ladder"
)

type MemStore struct {
	lk          sync.RWMutex
	punishments map[string][]*ladder.Punishment
	byID        map[string]*ladder.Punishment
	moderators  map[string]*authority.Moderator
	versions    map[string]int64
	auditLog    []*audit.ModAction
	auditIDs    map[string]bool
	profiles    map[string]*Profile
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		punishments: make(map[string][]*ladder.Punishment),
		byID:        make(map[string]*ladder.Punishment),
		moderators:  make(map[string]*authority.Moderator),
		versions:    make(map[string]int64),
		auditIDs:    make(map[string]bool),
		profiles:    make(map[string]*Profile),
	}
}

func (s *MemStore) ListPunishmentHistory(ctx context.Context, userHash string) ([]*ladder.Punishment, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	out := make([]*ladder.Punishment, 0, len(s.punishments[userHash]))
	for _, p := range s.punishments[userHash] {
		out = append(out, clonePunishment(p))
	}
	return out, nil
}

func (s *MemStore) PunishmentVersion(ctx context.Context, userHash string) (int64, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return s.versions[userHash], nil
}

// checkAuditLocked validates an entry before any change is applied, so a rejected entry leaves
// the store untouched.
func (s *MemStore) checkAuditLocked(a *audit.ModAction) error {
	if a == nil {
		return nil
	}
	if a.ID == "" || s.auditIDs[a.ID] {
		return fmt.Errorf("appending audit entry %q: %w", a.ID, errs.ErrConflict)
	}
	return nil
}

func (s *MemStore) appendAuditLocked(a *audit.ModAction) {
	if a == nil {
		return
	}
	c := cloneAction(a)
	// entries normally arrive in clock order; keep the log sorted if they don't
	i := len(s.auditLog)
	for i > 0 && s.auditLog[i-1].CreatedAt.After(c.CreatedAt) {
		i--
	}
	s.auditLog = slices.Insert(s.auditLog, i, c)
	s.auditIDs[c.ID] = true
}

func (s *MemStore) insertLocked(p *ladder.Punishment, entry *audit.ModAction) error {
	if _, ok := s.byID[p.ID]; ok {
		return fmt.Errorf("%w: punishment %s already exists", errs.ErrConflict, p.ID)
	}
	if err := s.checkAuditLocked(entry); err != nil {
		return err
	}
	s.appendAuditLocked(entry)
	s.versions[p.UserHash]++
	c := clonePunishment(p)
	s.byID[c.ID] = c
	l := append(s.punishments[c.UserHash], c)
	slices.SortStableFunc(l, func(a, b *ladder.Punishment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	s.punishments[c.UserHash] = l
	return nil
}

func (s *MemStore) InsertPunishment(ctx context.Context, p *ladder.Punishment, entry *audit.ModAction) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.insertLocked(p, entry)
}

func (s *MemStore) InsertPunishmentAfter(ctx context.Context, p *ladder.Punishment, prevID string, entry *audit.ModAction) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	latestID := ""
	if latest := ladder.LatestRecord(s.punishments[p.UserHash], p.UserHash); latest != nil {
		latestID = latest.ID
	}
	if latestID != prevID {
		return fmt.Errorf("%w: punishment history for user changed", errs.ErrConflict)
	}
	return s.insertLocked(p, entry)
}

func (s *MemStore) GetPunishment(ctx context.Context, id string) (*ladder.Punishment, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("punishment %s: %w", id, errs.ErrNotFound)
	}
	return clonePunishment(p), nil
}

func (s *MemStore) RevokePunishment(ctx context.Context, id, revokedBy string, at time.Time, entry *audit.ModAction) (*ladder.Punishment, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("punishment %s: %w", id, errs.ErrNotFound)
	}
	if p.Revoked() {
		return nil, fmt.Errorf("%w: punishment %s already revoked", errs.ErrConflict, id)
	}
	if err := s.checkAuditLocked(entry); err != nil {
		return nil, err
	}
	s.appendAuditLocked(entry)
	s.versions[p.UserHash]++
	at = at.UTC()
	p.RevokedAt = &at
	p.RevokedBy = revokedBy
	return clonePunishment(p), nil
}

func (s *MemStore) ListModerators(ctx context.Context) ([]*authority.Moderator, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	out := make([]*authority.Moderator, 0, len(s.moderators))
	for _, m := range s.moderators {
		c := *m
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *authority.Moderator) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemStore) GetModerator(ctx context.Context, id string) (*authority.Moderator, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	m, ok := s.moderators[id]
	if !ok {
		return nil, fmt.Errorf("moderator %s: %w", id, errs.ErrNotFound)
	}
	c := *m
	return &c, nil
}

func (s *MemStore) InsertModerator(ctx context.Context, m *authority.Moderator, entry *audit.ModAction) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if _, ok := s.moderators[m.ID]; ok {
		return fmt.Errorf("%w: moderator %s already exists", errs.ErrConflict, m.ID)
	}
	if err := s.checkAuditLocked(entry); err != nil {
		return err
	}
	s.appendAuditLocked(entry)
	c := *m
	s.moderators[m.ID] = &c
	return nil
}

func (s *MemStore) DeleteModerator(ctx context.Context, id string, entry *audit.ModAction) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if _, ok := s.moderators[id]; !ok {
		return fmt.Errorf("moderator %s: %w", id, errs.ErrNotFound)
	}
	if err := s.checkAuditLocked(entry); err != nil {
		return err
	}
	s.appendAuditLocked(entry)
	delete(s.moderators, id)
	return nil
}

func (s *MemStore) AppendAuditEntry(ctx context.Context, a *audit.ModAction) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if err := s.checkAuditLocked(a); err != nil {
		return err
	}
	s.appendAuditLocked(a)
	return nil
}

func (s *MemStore) QueryAuditEntries(ctx context.Context, f audit.Filter) ([]*audit.ModAction, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	var out []*audit.ModAction
	for _, a := range s.auditLog {
		if f.Match(a) {
			out = append(out, cloneAction(a))
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	if out == nil {
		out = []*audit.ModAction{}
	}
	return out, nil
}

func (s *MemStore) GetProfile(ctx context.Context, userHash string) (*Profile, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	p, ok := s.profiles[userHash]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userHash, errs.ErrNotFound)
	}
	return cloneProfile(p), nil
}

func (s *MemStore) PutProfile(ctx context.Context, p *Profile) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.profiles[p.UserHash] = cloneProfile(p)
	return nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
