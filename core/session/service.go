package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound         = errors.New("session not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAuthTokenInvalid = errors.New("invalid or expired auth token")

	nowFunc = time.Now // mockable

	userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSession(ctx context.Context, id uuid.UUID) (Session, error)
		GetSessionByToken(ctx context.Context, token string) (Session, error)
		SetSessionToken(ctx context.Context, id uuid.UUID, token string) (Session, error)
		SaveOAuthToken(ctx context.Context, id uuid.UUID, raw []byte) error
		DeleteSession(ctx context.Context, id uuid.UUID) error
		PurgeExpired(ctx context.Context, now time.Time) (int, error)
		CreateAuthToken(ctx context.Context, at AuthToken) (AuthToken, error)
		// ConsumeAuthToken marks the token used; ErrAuthTokenInvalid if missing, expired or already used.
		ConsumeAuthToken(ctx context.Context, token uuid.UUID, now time.Time) (AuthToken, error)
	}

	// Broker is the slice of *oauth2.Config we depend on.
	Broker interface {
		AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
		Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
		TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
		Client(ctx context.Context, t *oauth2.Token) *http.Client
	}

	// Verification is the outcome of a dual-channel identity check.
	// DropToken tells the client its stored bearer token is unusable and must
	// be discarded, regardless of whether the cookie still authenticated it.
	Verification struct {
		Session       Session
		Authenticated bool
		DropToken     bool
	}

	Service struct {
		repo       Repository
		broker     Broker
		conf       *core.Config
		logger     core.Logger
		fetchEmail func(ctx context.Context, client *http.Client) (string, error)
	}
)

func NewService(repo Repository, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo: repo,
		broker: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURL,
			Scopes:       conf.Google.Scopes,
			Endpoint:     google.Endpoint,
		},
		conf:       conf,
		logger:     logger,
		fetchEmail: fetchGoogleEmail,
	}
}

// AuthURL returns the provider authorization URL and the CSRF state embedded in it.
func (svc *Service) AuthURL() (url, state string) {
	state = uuid.NewString()
	url = svc.broker.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	return url, state
}

// HandleCallback exchanges the provider's one-time code, resolves the account
// email and establishes a Session along with a single-use AuthToken for the
// cross-origin token handoff.
func (svc *Service) HandleCallback(ctx context.Context, code string) (Session, AuthToken, error) {
	tok, err := svc.broker.Exchange(ctx, code)
	if err != nil {
		return Session{}, AuthToken{}, errors.Wrap(err, "exchanging authorization code")
	}

	email, err := svc.fetchEmail(ctx, svc.broker.Client(ctx, tok))
	if err != nil {
		return Session{}, AuthToken{}, errors.Wrap(err, "fetching account email")
	}

	raw, err := json.Marshal(tok)
	if err != nil {
		return Session{}, AuthToken{}, errors.Wrap(err, "serializing oauth token")
	}

	now := nowFunc().UTC()
	sess, err := svc.repo.CreateSession(ctx, Session{
		ID:         uuid.New(),
		Email:      email,
		OAuthToken: raw,
		CreatedAt:  now,
		ExpiresAt:  now.Add(svc.conf.Server.SessionTTL),
	})
	if err != nil {
		return Session{}, AuthToken{}, errors.Wrap(err, "creating session")
	}

	at, err := svc.repo.CreateAuthToken(ctx, AuthToken{
		Token:     uuid.New(),
		SessionID: sess.ID,
		ExpiresAt: now.Add(svc.conf.Server.AuthTokenTTL),
	})
	if err != nil {
		return Session{}, AuthToken{}, errors.Wrap(err, "creating auth token")
	}
	return sess, at, nil
}

// ExchangeAuthToken trades a single-use auth token for the session's opaque
// bearer token. A second exchange of the same token fails.
func (svc *Service) ExchangeAuthToken(ctx context.Context, authToken string) (Session, error) {
	token, err := uuid.Parse(core.CleanString(authToken))
	if err != nil {
		return Session{}, ErrAuthTokenInvalid
	}

	now := nowFunc().UTC()
	at, err := svc.repo.ConsumeAuthToken(ctx, token, now)
	if err != nil {
		return Session{}, err
	}

	sess, err := svc.repo.GetSession(ctx, at.SessionID)
	if err != nil || sess.Expired(now) {
		return Session{}, ErrAuthTokenInvalid
	}

	sess, err = svc.repo.SetSessionToken(ctx, sess.ID, uuid.NewString())
	if err != nil {
		return Session{}, errors.Wrap(err, "setting session token")
	}
	return sess, nil
}

// Verify checks the two identity proofs independently; either one suffices.
// An unusable bearer token is flagged for discarding even when a valid cookie
// still authenticates the request.
func (svc *Service) Verify(ctx context.Context, cookieID *uuid.UUID, bearer string) (Verification, error) {
	now := nowFunc().UTC()
	var res Verification

	if bearer != "" {
		sess, err := svc.repo.GetSessionByToken(ctx, bearer)
		switch {
		case err == nil && !sess.Expired(now):
			res.Session = sess
			res.Authenticated = true
			return res, nil
		case err == nil || errors.Cause(err) == ErrNotFound:
			res.DropToken = true
		default:
			return res, errors.Wrap(err, "finding session by token")
		}
	}

	if cookieID != nil {
		sess, err := svc.repo.GetSession(ctx, *cookieID)
		switch {
		case err == nil && !sess.Expired(now):
			res.Session = sess
			res.Authenticated = true
		case err == nil || errors.Cause(err) == ErrNotFound:
			// expired or unknown cookie session; caller stays anonymous
		default:
			return res, errors.Wrap(err, "finding session by ID")
		}
	}
	return res, nil
}

// Logout deletes the session record, revoking the cookie and bearer channels together.
func (svc *Service) Logout(ctx context.Context, sess Session) error {
	if err := svc.repo.DeleteSession(ctx, sess.ID); err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "deleting session")
	}
	return nil
}

// PurgeExpired removes expired sessions and stale auth tokens.
func (svc *Service) PurgeExpired(ctx context.Context) (int, error) {
	return svc.repo.PurgeExpired(ctx, nowFunc().UTC())
}

// TokenSource returns an oauth2.TokenSource for upstream calls on behalf of
// the session, persisting refreshed credentials back to the session record.
func (svc *Service) TokenSource(ctx context.Context, sess Session) (oauth2.TokenSource, error) {
	tok, err := sess.OAuth()
	if err != nil {
		return nil, errors.Wrap(err, "deserializing oauth token")
	}
	return &savingTokenSource{
		src:  svc.broker.TokenSource(ctx, tok),
		svc:  svc,
		ctx:  ctx,
		id:   sess.ID,
		last: tok,
	}, nil
}

type savingTokenSource struct {
	src  oauth2.TokenSource
	svc  *Service
	ctx  context.Context
	id   uuid.UUID
	last *oauth2.Token
}

func (ts *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != ts.last.AccessToken {
		ts.last = tok
		if raw, err := json.Marshal(tok); err == nil {
			if err = ts.svc.repo.SaveOAuthToken(ts.ctx, ts.id, raw); err != nil && ts.svc.logger != nil {
				ts.svc.logger.Warn("saving refreshed oauth token", err)
			}
		}
	}
	return tok, nil
}

func fetchGoogleEmail(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", core.NewUpstreamError("google userinfo", resp.StatusCode, errors.New(resp.Status))
	}

	var info struct {
		Email string `json:"email"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	if info.Email == "" {
		return "", errors.New("account email not present in userinfo")
	}
	return core.CleanString(info.Email, true /* lower */), nil
}
