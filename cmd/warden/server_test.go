package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/veilcampus/warden/moderation"
	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/engine"
	"github.com/veilcampus/warden/moderation/ladder"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSecret  = []byte("test-secret")
	testService = "svc-token"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	eng := engine.EngineTestFixture()
	_, err := engine.SeedModerators(context.Background(), eng)
	require.NoError(t, err)
	return NewServer(eng, Config{
		JWTSecret:    testSecret,
		ServiceToken: testService,
		Registerer:   prometheus.NewRegistry(),
	})
}

func doRequest(t *testing.T, srv *Server, method, path, modID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if modID != "" {
		tok, err := MintToken(testSecret, modID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestTokenRoundTrip(t *testing.T) {
	assert := assert.New(t)

	tok, err := MintToken(testSecret, "mod-king", time.Hour)
	assert.NoError(err)
	sub, err := parseToken(testSecret, tok)
	assert.NoError(err)
	assert.Equal("mod-king", sub)

	_, err = parseToken([]byte("other-secret"), tok)
	assert.Error(err)

	expired, err := MintToken(testSecret, "mod-king", -time.Minute)
	assert.NoError(err)
	_, err = parseToken(testSecret, expired)
	assert.Error(err)
}

func TestAuthRequired(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/moderators/me", "", "")
	assert.Equal(http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/v1/moderators/me", "nobody", "")
	assert.Equal(http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/v1/moderators/me", "mod-steward", "")
	assert.Equal(http.StatusOK, rec.Code)
	var m moderation.Moderator
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(authority.RoleSteward, m.Role)
}

func TestPunishEndpoint(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/punishments", "mod-marshal",
		`{"user_hash":"u1","level":3,"scope_type":"territory","scope_id":"t-north-1","reason":"spam"}`)
	assert.Equal(http.StatusOK, rec.Code)
	var out moderation.Outcome
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(out.Allowed)
	assert.Equal(ladder.LevelContentLock, out.Punishment.Level)

	// denial is a 403 carrying the reason
	rec = doRequest(t, srv, http.MethodPost, "/v1/punishments", "mod-marshal",
		`{"user_hash":"u1","level":6,"scope_type":"territory","scope_id":"t-north-1","reason":"worse"}`)
	assert.Equal(http.StatusForbidden, rec.Code)
	assert.Contains(rec.Body.String(), "Marshals cannot issue permanent bans")

	rec = doRequest(t, srv, http.MethodPost, "/v1/punishments", "mod-marshal",
		`{"user_hash":"u1","level":2,"scope_type":"territory","scope_id":"t-north-1","reason":""}`)
	assert.Equal(http.StatusBadRequest, rec.Code)
	var ge GenericError
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &ge))
	assert.Equal("InvalidRequest", ge.Error)

	rec = doRequest(t, srv, http.MethodPost, "/v1/punishments/missing/revoke", "mod-king", `{"reason":"appeal"}`)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestInternalEndpoints(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/punishments", "mod-marshal",
		`{"user_hash":"u2","level":3,"scope_type":"territory","scope_id":"t-north-1","reason":"spam"}`)
	assert.Equal(http.StatusOK, rec.Code)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(serviceTokenHeader, testService)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	rec = get("/internal/enforce?user=u2&territory=t-north-1&action=comment")
	assert.Equal(http.StatusOK, rec.Code)
	var d moderation.Decision
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &d))
	assert.False(d.Allowed)
	assert.Equal("Content creation locked", d.Reason)

	rec = get("/internal/enforce?user=u2&territory=t-north-1&action=like")
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(d.Allowed)

	rec = get("/internal/enforce?user=u2&action=dance")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = get("/internal/visible?viewer=v&author=u2&territory=t-north-1")
	assert.Equal(http.StatusOK, rec.Code)
	assert.JSONEq(`{"visible":true}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/internal/effective?user=u2", nil)
	req.Header.Set(serviceTokenHeader, "wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(http.StatusUnauthorized, rec.Code)
}

func TestAuditEndpoints(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/users/u3/warn", "mod-king", `{"reason":"said \"hi\", rudely"}`)
	assert.Equal(http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/v1/audit/export?user=u3", "mod-king", "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Header().Get("Content-Type"), "text/csv")
	parsed, err := audit.ParseAuditLog(strings.NewReader(rec.Body.String()))
	assert.NoError(err)
	assert.Len(parsed, 1)
	assert.Equal(`said "hi", rudely`, parsed[0].Reason)

	rec = doRequest(t, srv, http.MethodGet, "/v1/audit/summary", "mod-king", "")
	assert.Equal(http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/v1/audit?start=not-a-date", "mod-king", "")
	assert.Equal(http.StatusBadRequest, rec.Code)

	// sentinels may not review reports
	rec = doRequest(t, srv, http.MethodGet, "/v1/audit", "mod-sentinel", "")
	assert.Equal(http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/v1/punishments", "mod-marshal",
		`{"user_hash":"u4","level":3,"scope_type":"territory","scope_id":"t-north-1","reason":"spam"}`)
	assert.Equal(http.StatusOK, rec.Code)

	// a territory watcher reads only its own territory; the global warning stays hidden
	rec = doRequest(t, srv, http.MethodGet, "/v1/audit", "mod-watcher", "")
	assert.Equal(http.StatusOK, rec.Code)
	var scoped []*audit.ModAction
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &scoped))
	assert.Len(scoped, 1)
	assert.Equal("u4", scoped[0].TargetUserHash)

	rec = doRequest(t, srv, http.MethodGet, "/v1/audit", "mod-king", "")
	assert.Equal(http.StatusOK, rec.Code)
	var everything []*audit.ModAction
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &everything))
	assert.Len(everything, 2)
}

func TestRolesTree(t *testing.T) {
	assert := assert.New(t)
	out := rolesTree().String()
	assert.Contains(out, "Prime Sovereign")
	assert.Contains(out, "Veil Watcher")
}
