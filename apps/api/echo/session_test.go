package echoapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core/session"
)

func TestCheckAuth(t *testing.T) {
	env := newTestEnv(t)
	sess := env.authedSession(t)

	t.Run("anonymous", func(t *testing.T) {
		rec := env.do(newRequest(http.MethodGet, "/api/check_auth"))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		unmarshallBody(t, rec, &resp)
		assert.Equal(t, false, resp["authenticated"])
	})

	t.Run("with cookie", func(t *testing.T) {
		req := newRequest(http.MethodGet, "/api/check_auth")
		req.AddCookie(env.sessionCookie(t, sess))
		rec := env.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		unmarshallBody(t, rec, &resp)
		assert.Equal(t, true, resp["authenticated"])
		assert.Equal(t, "teacher@test.test", resp["email"])
	})
}

// either proof of identity lets a request through; neither is required jointly
func TestAuthDualChannels(t *testing.T) {
	env := newTestEnv(t)
	sess := env.authedSession(t)

	tests := []struct {
		name     string
		cookie   bool
		token    string
		wantCode int
	}{
		{name: "cookie only", cookie: true, wantCode: http.StatusOK},
		{name: "token only", token: sess.Token.String, wantCode: http.StatusOK},
		{name: "both", cookie: true, token: sess.Token.String, wantCode: http.StatusOK},
		{name: "invalid token with valid cookie", cookie: true, token: "bogus", wantCode: http.StatusOK},
		{name: "invalid token only", token: "bogus", wantCode: http.StatusUnauthorized},
		{name: "nothing", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(http.MethodPost, "/api/get-evaluation-criteria", []byte(`{}`))
			if tt.cookie {
				req.AddCookie(env.sessionCookie(t, sess))
			}
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := env.do(req)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), session.ErrNotAuthenticated.Error())
			}
		})
	}
}

func TestAuthURLSetsStateCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(newRequest(http.MethodGet, "/api/auth/google/url"))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	unmarshallBody(t, rec, &resp)
	assert.Contains(t, resp["url"], "state=")

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found, "state cookie not set")
}

func TestExchangeAuthTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	sess := env.authedSession(t)

	at, err := env.sessions.CreateAuthToken(context.Background(), session.AuthToken{
		Token:     uuid.New(),
		SessionID: sess.ID,
		ExpiresAt: time.Now().UTC().Add(env.conf.Server.AuthTokenTTL),
	})
	assert.NoError(t, err)

	body := marshallObj(t, map[string]string{"auth_token": at.Token.String()})

	rec := env.do(newRequest(http.MethodPost, "/api/auth/create-session-token", body))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	unmarshallBody(t, rec, &resp)
	token, _ := resp["session_token"].(string)
	assert.NotEmpty(t, token)
	assert.Equal(t, "teacher@test.test", resp["email"])

	// second exchange fails
	rec = env.do(newRequest(http.MethodPost, "/api/auth/exchange-token", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySessionToken(t *testing.T) {
	env := newTestEnv(t)
	sess := env.authedSession(t)

	t.Run("valid", func(t *testing.T) {
		body := marshallObj(t, map[string]string{"session_token": sess.Token.String})
		rec := env.do(newRequest(http.MethodPost, "/api/auth/verify-session-token", body))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		unmarshallBody(t, rec, &resp)
		assert.Equal(t, true, resp["valid"])
		assert.Equal(t, false, resp["drop_token"])
	})

	t.Run("invalid is flagged for discarding", func(t *testing.T) {
		body := marshallObj(t, map[string]string{"session_token": "bogus"})
		rec := env.do(newRequest(http.MethodPost, "/api/auth/verify-session-token", body))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		unmarshallBody(t, rec, &resp)
		assert.Equal(t, false, resp["valid"])
		assert.Equal(t, true, resp["drop_token"])
	})
}

func TestLogoutRevokesBothChannels(t *testing.T) {
	env := newTestEnv(t)
	sess := env.authedSession(t)

	req := newRequest(http.MethodPost, "/api/auth/google/logout", []byte(`{}`))
	req.Header.Set("Authorization", "Bearer "+sess.Token.String)
	rec := env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// cookie is cleared in the response
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == env.conf.Server.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie not cleared")

	// both proofs are dead server-side
	req = newRequest(http.MethodPost, "/api/get-evaluation-criteria", []byte(`{}`))
	req.Header.Set("Authorization", "Bearer "+sess.Token.String)
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)

	req = newRequest(http.MethodGet, "/api/check_auth")
	req.AddCookie(env.sessionCookie(t, sess))
	rec = env.do(req)
	var resp map[string]interface{}
	unmarshallBody(t, rec, &resp)
	assert.Equal(t, false, resp["authenticated"])
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	env := newTestEnv(t)

	// no state cookie at all
	rec := env.do(newRequest(http.MethodGet, "/api/auth/google/callback?code=x&state=y"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "state"), rec.Body.String())
}
