package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"golang.org/x/oauth2"
)

// Session is one authenticated identity brokered from the OAuth provider.
// It backs two independent proofs of identity: the signed first-party cookie
// (carrying the session ID) and the opaque bearer Token that the client may
// obtain via the one-time auth-token exchange. Either proof is sufficient;
// logout deletes the record and revokes both at once.
type Session struct {
	ID         uuid.UUID   `json:"id"`
	Email      string      `json:"email"`
	Token      null.String `json:"-"` // opaque bearer session_token; unset until exchanged
	OAuthToken []byte      `json:"-"` // serialized oauth2.Token for upstream calls
	CreatedAt  time.Time   `json:"created_at"` // UTC
	ExpiresAt  time.Time   `json:"expires_at"` // UTC
}

func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

func (s Session) OAuth() (*oauth2.Token, error) {
	tok := new(oauth2.Token)
	if err := json.Unmarshal(s.OAuthToken, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// AuthToken is a short-lived single-use code handed to the frontend in the
// OAuth redirect URL, exchangeable exactly once for the session's bearer token.
type AuthToken struct {
	Token     uuid.UUID `json:"auth_token"`
	SessionID uuid.UUID `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	UsedAt    null.Time `json:"-"`
}

func (at AuthToken) Usable(now time.Time) bool {
	return !at.UsedAt.Valid && at.ExpiresAt.After(now)
}
