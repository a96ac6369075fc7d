package echoapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/session"
)

type sessionApi struct {
	svc     *session.Service
	cookies *cookieManager
	conf    *core.Config
}

func registerSessionAPI(
	g *echo.Group,
	authed echo.MiddlewareFunc,
	cookies *cookieManager,
	svc *session.Service,
	conf *core.Config,
) {
	api := sessionApi{svc: svc, cookies: cookies, conf: conf}

	g.GET("/check_auth", api.checkAuth)
	g.GET("/auth/google/url", api.authURL)
	g.GET("/auth/google/callback", api.callback)
	g.POST("/auth/create-session-token", api.exchangeAuthToken)
	g.POST("/auth/exchange-token", api.exchangeAuthToken) // alternate path, same semantics
	g.POST("/auth/verify-session-token", api.verifySessionToken)
	g.POST("/auth/google/logout", api.logout, authed)
}

// Handlers

func (api *sessionApi) checkAuth(ctx echo.Context) error {
	verif, err := getContextVerification(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context verification")
	}

	resp := echo.Map{"authenticated": verif.Authenticated}
	if verif.Authenticated {
		resp["email"] = verif.Session.Email
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *sessionApi) authURL(ctx echo.Context) error {
	authURL, state := api.svc.AuthURL()
	if err := api.cookies.saveState(ctx, state); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"url": authURL})
}

// callback processes the provider redirect: it establishes the cookie session
// and forwards the one-time auth token to the frontend for the cross-origin
// bearer-token handoff.
func (api *sessionApi) callback(ctx echo.Context) error {
	if errParam := ctx.QueryParam("error"); errParam != "" {
		return echo.NewHTTPError(http.StatusBadRequest, "authorization declined: "+errParam)
	}

	state, ok := api.cookies.popState(ctx)
	if !ok || state != ctx.QueryParam("state") {
		return errStateMismatch
	}
	code := ctx.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
	}

	sess, at, err := api.svc.HandleCallback(ctx.Request().Context(), code)
	if err != nil {
		return errors.Wrap(err, "handling oauth callback")
	}
	if err = api.cookies.saveSession(ctx, sess); err != nil {
		return err
	}

	redirect, err := url.Parse(api.conf.FrontendBaseURL)
	if err != nil {
		return errors.Wrap(err, "parsing frontend base URL")
	}
	q := redirect.Query()
	q.Set("auth_token", at.Token.String())
	redirect.RawQuery = q.Encode()

	return ctx.Redirect(http.StatusFound, redirect.String())
}

func (api *sessionApi) exchangeAuthToken(ctx echo.Context) error {
	var data struct {
		AuthToken string `json:"auth_token"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding auth token request")
	}

	sess, err := api.svc.ExchangeAuthToken(ctx.Request().Context(), data.AuthToken)
	if err != nil {
		if errors.Cause(err) == session.ErrAuthTokenInvalid {
			return echo.NewHTTPError(http.StatusUnauthorized, session.ErrAuthTokenInvalid.Error())
		}
		return errors.Wrap(err, "exchanging auth token")
	}

	return ctx.JSON(http.StatusOK, echo.Map{
		"session_token": sess.Token.String,
		"email":         sess.Email,
		"expires_at":    sess.ExpiresAt,
	})
}

// verifySessionToken checks only the bearer channel. An unusable token is
// reported for discarding even when the request also carried a valid cookie.
func (api *sessionApi) verifySessionToken(ctx echo.Context) error {
	var data struct {
		SessionToken string `json:"session_token"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding session token request")
	}

	verif, err := api.svc.Verify(ctx.Request().Context(), nil, data.SessionToken)
	if err != nil {
		return errors.Wrap(err, "verifying session token")
	}

	resp := echo.Map{
		"valid":      verif.Authenticated,
		"drop_token": verif.DropToken,
	}
	if verif.Authenticated {
		resp["email"] = verif.Session.Email
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *sessionApi) logout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Logout(ctx.Request().Context(), sess); err != nil {
		return errors.Wrap(err, "logging out")
	}
	api.cookies.deleteSession(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{"detail": "logged out"})
}
