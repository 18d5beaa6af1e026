package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/juju/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/youthhub/internal/auth"
	"github.com/sakif/youthhub/internal/config"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository/sqlite"
)

const testSecret = "server-test-secret-0123456789"

type testServer struct {
	handler http.Handler
	db      *sqlite.DB
	tokens  *auth.TokenService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret

	srv, err := New(cfg, db, clock.WallClock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(testSecret, 0)
	require.NoError(t, err)
	return &testServer{handler: srv.Handler(), db: db, tokens: tokens}
}

// tokenFor stores a user with the given role and mints a token for it.
func (s *testServer) tokenFor(t *testing.T, name string, role model.Role) (string, string) {
	t.Helper()
	u := model.NewUser(name, name+"@example.com")
	u.Role = role
	require.NoError(t, s.db.CreateUser(context.Background(), u))
	token, err := s.tokens.Generate(u.ID, role)
	require.NoError(t, err)
	return u.ID, token
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	var out map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out), "body: %s", rr.Body.String())
	return rr.Code, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestNew_RejectsShortSecret(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Default()
	cfg.Auth.JWTSecret = "short"
	_, err = New(cfg, db, clock.WallClock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/auth/register", "",
		`{"name":"Ana","email":"Ana@Example.com","password":"segredo123"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "success", body["type"])
	assert.NotEmpty(t, body["token"])

	code, body = s.do(t, http.MethodPost, "/api/auth/register", "",
		`{"name":"Ana 2","email":"ana@example.com","password":"segredo123"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["type"])
	assert.Equal(t, "email", body["field"])

	code, body = s.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"ana@example.com","password":"errada"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body["type"])

	code, body = s.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"ana@example.com","password":"segredo123"}`)
	require.Equal(t, http.StatusOK, code)
	token := body["token"].(string)

	code, body = s.do(t, http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusOK, code)
	me := body["data"].(map[string]any)
	assert.Equal(t, "ana@example.com", me["email"])
	assert.Equal(t, string(model.RoleYouth), me["role"])
	assert.NotContains(t, me, "passwordHash")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/auth/me", "/api/users/ranking/me", "/api/users/cursos/lembrados", "/api/cursos/meus-cursos"} {
		code, body := s.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.Equal(t, "unauthorized", body["type"], path)
	}
}

func TestRankingIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.tokenFor(t, "ana", model.RoleYouth)
	s.tokenFor(t, "bia", model.RoleYouth)

	for _, path := range []string{"/api/users/ranking/top3", "/api/users/ranking?limit=5"} {
		code, body := s.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, code, path)
		assert.Equal(t, "success", body["type"], path)
		assert.Equal(t, float64(2), body["count"], path)
	}
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	_, youth := s.tokenFor(t, "ana", model.RoleYouth)
	_, editor := s.tokenFor(t, "eva", model.RoleEditor)
	_, admin := s.tokenFor(t, "adm", model.RoleAdmin)
	course := `{"title":"Go","capacity":2}`

	code, body := s.do(t, http.MethodPost, "/api/cursos", youth, course)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["type"])

	code, _ = s.do(t, http.MethodPost, "/api/cursos", editor, course)
	assert.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodPost, "/api/achievements", editor, `{"name":"Primeiro passo","points":10}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/achievements", admin, `{"name":"Primeiro passo","points":10}`)
	assert.Equal(t, http.StatusCreated, code)

	code, body = s.do(t, http.MethodGet, "/api/achievements", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
}

func TestDashboardSummary_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	_, youth := s.tokenFor(t, "ana", model.RoleYouth)
	_, editor := s.tokenFor(t, "eva", model.RoleEditor)
	_, admin := s.tokenFor(t, "adm", model.RoleAdmin)

	code, body := s.do(t, http.MethodGet, "/api/dashboard/summary", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body["type"])

	for _, token := range []string{youth, editor} {
		code, body = s.do(t, http.MethodGet, "/api/dashboard/summary", token, "")
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "forbidden", body["type"])
	}

	code, body = s.do(t, http.MethodGet, "/api/dashboard/summary", admin, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["type"])
	users := body["data"].(map[string]any)["users"].(map[string]any)
	assert.Equal(t, float64(1), users["total"])
}

// TestEnrollmentFlow walks a two-seat course through enroll, full, cancel and
// re-enroll, then runs the course and checks in.
func TestEnrollmentFlow(t *testing.T) {
	s := newTestServer(t)
	_, editor := s.tokenFor(t, "eva", model.RoleEditor)
	_, ana := s.tokenFor(t, "ana", model.RoleYouth)
	_, bia := s.tokenFor(t, "bia", model.RoleYouth)
	_, caio := s.tokenFor(t, "caio", model.RoleYouth)

	code, body := s.do(t, http.MethodPost, "/api/cursos", editor, `{"title":"Go","capacity":2,"xpReward":150}`)
	require.Equal(t, http.StatusCreated, code)
	id := body["data"].(map[string]any)["id"].(string)
	enroll := "/api/cursos/" + id + "/enrollment"

	code, body = s.do(t, http.MethodPost, enroll, ana, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["type"])

	code, body = s.do(t, http.MethodPost, enroll, bia, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["seatsTaken"])

	code, body = s.do(t, http.MethodPost, enroll, caio, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "full", body["type"])

	code, body = s.do(t, http.MethodDelete, enroll, bia, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["seatsTaken"])

	code, body = s.do(t, http.MethodPost, enroll, caio, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["type"])

	code, body = s.do(t, http.MethodGet, "/api/cursos/meus-cursos", caio, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, _ = s.do(t, http.MethodPut, "/api/cursos/"+id+"/status", editor, `{"status":"Ongoing"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, enroll, bia, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_status", body["type"])

	code, body = s.do(t, http.MethodPost, "/api/cursos/"+id+"/checkin", ana, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["type"])
	assert.Equal(t, float64(150), body["xp"])
	assert.Equal(t, float64(2), body["level"])
	assert.Equal(t, true, body["leveledUp"])

	code, body = s.do(t, http.MethodGet, "/api/users/ranking/top3", caio, "")
	assert.Equal(t, http.StatusOK, code)
	top := body["items"].([]any)
	require.NotEmpty(t, top)
	assert.Equal(t, "ana", top[0].(map[string]any)["name"])
}

func TestSetActive_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	anaID, ana := s.tokenFor(t, "ana", model.RoleYouth)
	_, admin := s.tokenFor(t, "adm", model.RoleAdmin)
	path := "/api/users/" + anaID + "/active"

	code, _ := s.do(t, http.MethodPut, path, ana, `{"active":false}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodPut, path, admin, `{"active":false}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["type"])

	code, body = s.do(t, http.MethodPut, "/api/users/nope/active", admin, `{"active":true}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["type"])
}
