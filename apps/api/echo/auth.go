package echoapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/session"
)

const stateCookieName = "darasa_oauth_state"

// cookieManager signs and verifies the first-party cookies: the session
// cookie carrying the session ID, and the short-lived OAuth state cookie.
type cookieManager struct {
	sc     *securecookie.SecureCookie
	name   string
	secure bool
}

func newCookieManager(conf *core.Config) *cookieManager {
	return &cookieManager{
		sc:     securecookie.New(conf.SecretKey, nil),
		name:   conf.Server.CookieName,
		secure: !conf.Debug,
	}
}

func (cm *cookieManager) saveSession(ctx echo.Context, sess session.Session) error {
	encoded, err := cm.sc.Encode(cm.name, sess.ID.String())
	if err != nil {
		return errors.Wrap(err, "encoding session cookie")
	}
	ctx.SetCookie(&http.Cookie{
		Name:     cm.name,
		Value:    encoded,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// readSessionID returns nil when the cookie is absent or its signature is bad.
func (cm *cookieManager) readSessionID(ctx echo.Context) *uuid.UUID {
	cookie, err := ctx.Cookie(cm.name)
	if err != nil {
		return nil
	}
	var raw string
	if err = cm.sc.Decode(cm.name, cookie.Value, &raw); err != nil {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func (cm *cookieManager) deleteSession(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     cm.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (cm *cookieManager) saveState(ctx echo.Context, state string) error {
	encoded, err := cm.sc.Encode(stateCookieName, state)
	if err != nil {
		return errors.Wrap(err, "encoding state cookie")
	}
	ctx.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// popState reads and clears the OAuth state cookie.
func (cm *cookieManager) popState(ctx echo.Context) (string, bool) {
	cookie, err := ctx.Cookie(stateCookieName)
	if err != nil {
		return "", false
	}
	ctx.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	var state string
	if err = cm.sc.Decode(stateCookieName, cookie.Value, &state); err != nil {
		return "", false
	}
	return state, true
}
