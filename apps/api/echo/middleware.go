package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/session"
)

const contextVerificationKey = "verification"

// sessionMiddleware checks both identity proofs (signed cookie, bearer
// session token) on every request and stores the outcome in the context.
// It never rejects; authRequiredMiddleware does that where endpoints need it.
func sessionMiddleware(svc *session.Service, cookies *cookieManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cookieID := cookies.readSessionID(ctx)
			bearer := bearerToken(ctx)

			verif, err := svc.Verify(ctx.Request().Context(), cookieID, bearer)
			if err != nil {
				return errors.Wrap(err, "verifying session")
			}
			ctx.Set(contextVerificationKey, verif)
			return next(ctx)
		}
	}
}

func authRequiredMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if verif, err := getContextVerification(ctx); err != nil || !verif.Authenticated {
				return errNotAuthenticated
			}
			return next(ctx)
		}
	}
}

func getContextVerification(ctx echo.Context) (session.Verification, error) {
	verif, ok := ctx.Get(contextVerificationKey).(session.Verification)
	if !ok {
		return session.Verification{}, errors.New("verification not found in echo.Context")
	}
	return verif, nil
}

func getContextSession(ctx echo.Context) (session.Session, error) {
	verif, err := getContextVerification(ctx)
	if err != nil {
		return session.Session{}, err
	}
	if !verif.Authenticated {
		return session.Session{}, errNotAuthenticated
	}
	return verif.Session, nil
}

func bearerToken(ctx echo.Context) string {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
