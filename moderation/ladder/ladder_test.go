package ladder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilcampus/warden/moderation/authority"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func ptime(t time.Time) *time.Time {
	return &t
}

func rec(id, user string, lvl Level, st authority.ScopeType, scope string, created time.Time, expires *time.Time) *Punishment {
	return &Punishment{
		ID:        id,
		UserHash:  user,
		Level:     lvl,
		ScopeType: st,
		ScopeID:   scope,
		CreatedAt: created,
		ExpiresAt: expires,
		AppliedBy: "mod-1",
		Reason:    "test",
	}
}

func TestEffectiveAtScopeAndSeverity(t *testing.T) {
	assert := assert.New(t)

	all := []*Punishment{
		rec("p1", "uA", LevelCooldown, authority.ScopeGlobal, "", t0, ptime(t0.Add(48*time.Hour))),
		rec("p2", "uA", LevelTerritoryMute, authority.ScopeTerritory, "t-north", t0.Add(-time.Hour), ptime(t0.Add(48*time.Hour))),
		rec("p3", "uB", LevelPermanentBan, authority.ScopeGlobal, "", t0, nil),
	}
	now := t0.Add(time.Hour)

	// global level 2 and matching territory level 4: territory wins on severity
	p := EffectiveAt(now, all, "uA", "t-north", "d-east")
	assert.NotNil(p)
	assert.Equal("p2", p.ID)

	// different territory: only the global record applies
	p = EffectiveAt(now, all, "uA", "t-south", "d-east")
	assert.Equal("p1", p.ID)

	// no scope supplied
	p = EffectiveAt(now, all, "uA", "", "")
	assert.Equal("p1", p.ID)

	assert.Nil(EffectiveAt(now, all, "uC", "t-north", ""))
	assert.Nil(EffectiveAt(now, nil, "uA", "", ""))
}

func TestEffectiveAtExpiryAndRevocation(t *testing.T) {
	assert := assert.New(t)

	expired := rec("old", "uA", LevelRegionalMute, authority.ScopeGlobal, "", t0.Add(-72*time.Hour), ptime(t0.Add(-time.Hour)))
	revoked := rec("rev", "uA", LevelPermanentBan, authority.ScopeGlobal, "", t0.Add(-time.Hour), nil)
	revoked.RevokedAt = ptime(t0.Add(-time.Minute))
	active := rec("cur", "uA", LevelShadowBan, authority.ScopeDominion, "d-east", t0.Add(-2*time.Hour), ptime(t0.Add(time.Hour)))
	all := []*Punishment{expired, revoked, active}

	assert.Equal("cur", EffectiveAt(t0, all, "uA", "t-north", "d-east").ID)
	assert.Nil(EffectiveAt(t0, all, "uA", "t-north", "d-west"))

	// the revoked ban was in effect before the tombstone
	assert.Equal("rev", EffectiveAt(t0.Add(-30*time.Minute), all, "uA", "", "").ID)

	// expiry boundary is exclusive
	assert.Nil(EffectiveAt(t0.Add(time.Hour), []*Punishment{active}, "uA", "", "d-east"))
}

func TestEffectiveAtTieBreak(t *testing.T) {
	assert := assert.New(t)

	a := rec("a", "uA", LevelContentLock, authority.ScopeGlobal, "", t0, nil)
	b := rec("b", "uA", LevelContentLock, authority.ScopeTerritory, "t1", t0.Add(time.Minute), nil)
	assert.Equal("b", EffectiveAt(t0.Add(time.Hour), []*Punishment{a, b}, "uA", "t1", "").ID)
	assert.Equal("b", EffectiveAt(t0.Add(time.Hour), []*Punishment{b, a}, "uA", "t1", "").ID)
}

func TestEffectiveAtIsMaximum(t *testing.T) {
	assert := assert.New(t)

	now := t0
	var all []*Punishment
	for i, lvl := range []Level{2, 5, 1, 3, 5, 4} {
		created := t0.Add(-time.Duration(i+1) * time.Minute)
		all = append(all, rec(string(rune('a'+i)), "uA", lvl, authority.ScopeGlobal, "", created, ptime(t0.Add(time.Hour))))
	}
	p := EffectiveAt(now, all, "uA", "", "")
	assert.Equal(LevelRegionalMute, p.Level)
	// both level 5 records tie; "b" was created more recently than "e"
	assert.Equal("b", p.ID)
	for _, other := range all {
		assert.LessOrEqual(other.Level, p.Level)
	}
}

func TestIsUserPunishedUsesWallClock(t *testing.T) {
	assert := assert.New(t)

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)
	all := []*Punishment{
		rec("live", "uA", LevelCooldown, authority.ScopeGlobal, "", time.Now(), &future),
		rec("gone", "uA", LevelPermanentBan, authority.ScopeGlobal, "", past, &past),
	}
	assert.Equal("live", IsUserPunished(all, "uA", "", "").ID)
}

func TestCanUserAct(t *testing.T) {
	assert := assert.New(t)

	actions := []UserAction{UserPost, UserComment, UserLike, UserChat}
	for _, a := range actions {
		assert.True(CanUserAct(nil, a).Allowed)
		assert.True(CanUserAct(&Punishment{Level: LevelShadowBan}, a).Allowed)
		assert.False(CanUserAct(&Punishment{Level: LevelPermanentBan}, a).Allowed)
	}

	cooldown := &Punishment{Level: LevelCooldown}
	assert.False(CanUserAct(cooldown, UserPost).Allowed)
	assert.True(CanUserAct(cooldown, UserComment).Allowed)
	assert.True(CanUserAct(cooldown, UserChat).Allowed)

	lock := &Punishment{Level: LevelContentLock}
	assert.Equal(Decision{Allowed: false, Reason: "Content creation locked"}, CanUserAct(lock, UserComment))
	assert.Equal(Decision{Allowed: true}, CanUserAct(lock, UserLike))
	assert.False(CanUserAct(lock, UserPost).Allowed)
	assert.True(CanUserAct(lock, UserChat).Allowed)

	for _, lvl := range []Level{LevelTerritoryMute, LevelRegionalMute} {
		p := &Punishment{Level: lvl}
		assert.True(CanUserAct(p, UserLike).Allowed)
		assert.False(CanUserAct(p, UserChat).Allowed)
		assert.False(CanUserAct(p, UserComment).Allowed)
		assert.NotEmpty(CanUserAct(p, UserPost).Reason)
	}
}

func TestIsContentVisible(t *testing.T) {
	assert := assert.New(t)

	for lvl := MinLevel; lvl <= MaxLevel; lvl++ {
		p := &Punishment{Level: lvl}
		assert.True(IsContentVisible("author", "author", p))
		assert.Equal(lvl != LevelShadowBan, IsContentVisible("viewer", "author", p), "level %d", lvl)
	}
	assert.True(IsContentVisible("viewer", "author", nil))
	assert.True(IsContentVisible("author", "author", nil))
}

func TestGetNextPunishmentLevel(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(LevelShadowBan, GetNextPunishmentLevel(nil, "uA"))

	history := []*Punishment{
		rec("a", "uA", LevelContentLock, authority.ScopeGlobal, "", t0, nil),
		rec("b", "uA", LevelCooldown, authority.ScopeGlobal, "", t0.Add(time.Hour), nil),
		rec("c", "uB", LevelRegionalMute, authority.ScopeGlobal, "", t0.Add(2*time.Hour), nil),
	}
	// most recent record, not the maximum
	assert.Equal(LevelContentLock, GetNextPunishmentLevel(history, "uA"))
	assert.Equal(LevelPermanentBan, GetNextPunishmentLevel(history, "uB"))
	assert.Equal(LevelShadowBan, GetNextPunishmentLevel(history, "uC"))

	capped := []*Punishment{rec("x", "uA", LevelPermanentBan, authority.ScopeGlobal, "", t0, nil)}
	assert.Equal(LevelPermanentBan, GetNextPunishmentLevel(capped, "uA"))

	revoked := rec("r", "uA", LevelRegionalMute, authority.ScopeGlobal, "", t0.Add(3*time.Hour), nil)
	revoked.RevokedAt = ptime(t0.Add(4 * time.Hour))
	history = append(history, revoked)
	assert.Equal(LevelContentLock, GetNextPunishmentLevel(history, "uA"))

	for lvl := MinLevel; lvl <= MaxLevel; lvl++ {
		next := GetNextPunishmentLevel([]*Punishment{rec("z", "uZ", lvl, authority.ScopeGlobal, "", t0, nil)}, "uZ")
		assert.GreaterOrEqual(next, lvl)
		assert.Equal(min(lvl+1, MaxLevel), next)
	}
}

func TestCreatePunishment(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	pol := DefaultPolicy()
	pol.Now = func() time.Time { return t0 }

	p, err := pol.CreatePunishment("uA", LevelCooldown, authority.ScopeTerritory, "t1", "mod-1", "spam")
	require.NoError(err)
	assert.NotEmpty(p.ID)
	assert.Equal(t0, p.CreatedAt)
	require.NotNil(p.ExpiresAt)
	assert.Equal(t0.Add(24*time.Hour), *p.ExpiresAt)
	assert.Equal("t1", p.ScopeID)
	assert.Equal("mod-1", p.AppliedBy)

	ban, err := pol.CreatePunishment("uA", LevelPermanentBan, authority.ScopeGlobal, "ignored", "mod-1", "threats")
	require.NoError(err)
	assert.Nil(ban.ExpiresAt)
	assert.True(ban.Permanent())
	assert.Empty(ban.ScopeID)

	_, err = pol.CreatePunishment("uA", Level(7), authority.ScopeGlobal, "", "mod-1", "x")
	assert.Error(err)
	_, err = pol.CreatePunishment("uA", LevelCooldown, authority.ScopeDominion, "", "mod-1", "x")
	assert.Error(err)
	_, err = pol.CreatePunishment("", LevelCooldown, authority.ScopeGlobal, "", "mod-1", "x")
	assert.Error(err)
}

func TestPolicyDurations(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	overrides, err := ParseDurations("1=48h, cooldown=12h")
	require.NoError(err)
	assert.Equal(48*time.Hour, overrides[LevelShadowBan])
	assert.Equal(12*time.Hour, overrides[LevelCooldown])

	pol, err := NewPolicy(overrides)
	require.NoError(err)
	d, ok := pol.Duration(LevelCooldown)
	assert.True(ok)
	assert.Equal(12*time.Hour, d)
	d, ok = pol.Duration(LevelRegionalMute)
	assert.True(ok)
	assert.Equal(30*24*time.Hour, d)
	_, ok = pol.Duration(LevelPermanentBan)
	assert.False(ok)
	assert.Equal("1=48h0m0s,2=12h0m0s,3=72h0m0s,4=168h0m0s,5=720h0m0s,6=permanent", pol.String())

	_, err = NewPolicy(map[Level]time.Duration{LevelPermanentBan: time.Hour})
	assert.Error(err)
	_, err = NewPolicy(map[Level]time.Duration{Level(9): time.Hour})
	assert.Error(err)
	_, err = ParseDurations("1:48h")
	assert.Error(err)
	_, err = ParseDurations("1=forever")
	assert.Error(err)

	empty, err := ParseDurations("")
	assert.NoError(err)
	assert.Empty(empty)
}

func TestLevelHelpers(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("content lock", LevelContentLock.Name())
	assert.Equal(authority.ActionPermanentBan, LevelPermanentBan.Action())
	l, ok := LevelForAction(authority.ActionTerritoryMute)
	assert.True(ok)
	assert.Equal(LevelTerritoryMute, l)
	_, ok = LevelForAction(authority.ActionUnban)
	assert.False(ok)

	l, err := ParseLevel("regional_mute")
	assert.NoError(err)
	assert.Equal(LevelRegionalMute, l)
	_, err = ParseLevel("0")
	assert.Error(err)
}
