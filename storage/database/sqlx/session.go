package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/session"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *sql.DB) *sessionRepository {
	return &sessionRepository{db: sqlx.NewDb(db, "postgres")}
}

type sessionRow struct {
	ID           uuid.UUID      `db:"id"`
	Email        string         `db:"email"`
	SessionToken sql.NullString `db:"session_token"`
	OAuthToken   []byte         `db:"oauth_token"`
	CreatedAt    time.Time      `db:"created_at"`
	ExpiresAt    time.Time      `db:"expires_at"`
}

func (row sessionRow) toSession() session.Session {
	sess := session.Session{
		ID:         row.ID,
		Email:      row.Email,
		OAuthToken: row.OAuthToken,
		CreatedAt:  row.CreatedAt,
		ExpiresAt:  row.ExpiresAt,
	}
	if row.SessionToken.Valid {
		sess.Token = null.StringFrom(row.SessionToken.String)
	}
	return sess
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	const q = `
INSERT INTO session (id, email, oauth_token, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, q, sess.ID, sess.Email, sess.OAuthToken, sess.CreatedAt, sess.ExpiresAt); err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo sessionRepository) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM session WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return session.Session{}, session.ErrNotFound
	case err != nil:
		return session.Session{}, errors.Wrap(err, "querying session")
	}
	return row.toSession(), nil
}

func (repo sessionRepository) GetSessionByToken(ctx context.Context, token string) (session.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM session WHERE session_token = $1`, token)
	switch {
	case err == sql.ErrNoRows:
		return session.Session{}, session.ErrNotFound
	case err != nil:
		return session.Session{}, errors.Wrap(err, "querying session by token")
	}
	return row.toSession(), nil
}

func (repo sessionRepository) SetSessionToken(ctx context.Context, id uuid.UUID, token string) (session.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, `UPDATE session SET session_token = $2 WHERE id = $1 RETURNING *`, id, token)
	switch {
	case err == sql.ErrNoRows:
		return session.Session{}, session.ErrNotFound
	case err != nil:
		return session.Session{}, errors.Wrap(err, "setting session token")
	}
	return row.toSession(), nil
}

func (repo sessionRepository) SaveOAuthToken(ctx context.Context, id uuid.UUID, raw []byte) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE session SET oauth_token = $2 WHERE id = $1`, id, raw)
	if err != nil {
		return errors.Wrap(err, "saving oauth token")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (repo sessionRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM session WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// PurgeExpired removes expired sessions (auth tokens cascade) and stale
// stand-alone auth tokens.
func (repo sessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM session WHERE expires_at < $1`, now)
	if err != nil {
		return 0, errors.Wrap(err, "purging sessions")
	}
	n, _ := res.RowsAffected()

	if _, err = repo.db.ExecContext(ctx, `DELETE FROM auth_token WHERE expires_at < $1 OR used_at IS NOT NULL`, now); err != nil {
		return int(n), errors.Wrap(err, "purging auth tokens")
	}
	return int(n), nil
}

func (repo sessionRepository) CreateAuthToken(ctx context.Context, at session.AuthToken) (session.AuthToken, error) {
	const q = `
INSERT INTO auth_token (token, session_id, expires_at)
VALUES ($1, $2, $3)`
	if _, err := repo.db.ExecContext(ctx, q, at.Token, at.SessionID, at.ExpiresAt); err != nil {
		return session.AuthToken{}, errors.Wrap(err, "inserting auth token")
	}
	return at, nil
}

func (repo sessionRepository) ConsumeAuthToken(ctx context.Context, token uuid.UUID, now time.Time) (session.AuthToken, error) {
	// single-use: marking used_at and matching on used_at IS NULL is atomic
	const q = `
UPDATE auth_token SET used_at = $2
WHERE token = $1 AND used_at IS NULL AND expires_at > $2
RETURNING session_id, expires_at`

	var row struct {
		SessionID uuid.UUID `db:"session_id"`
		ExpiresAt time.Time `db:"expires_at"`
	}
	err := repo.db.GetContext(ctx, &row, q, token, now)
	switch {
	case err == sql.ErrNoRows:
		return session.AuthToken{}, session.ErrAuthTokenInvalid
	case err != nil:
		return session.AuthToken{}, errors.Wrap(err, "consuming auth token")
	}
	return session.AuthToken{
		Token:     token,
		SessionID: row.SessionID,
		ExpiresAt: row.ExpiresAt,
		UsedAt:    null.TimeFrom(now),
	}, nil
}
