package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id uuid.UUID) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return *sess, nil
}

func (repo *sessionRepository) GetSessionByToken(_ context.Context, token string) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sess := range repo.db.sessions {
		if sess.Token.Valid && sess.Token.String == token {
			return *sess, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) SetSessionToken(_ context.Context, id uuid.UUID, token string) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	sess.Token = null.StringFrom(token)
	return *sess, nil
}

func (repo *sessionRepository) SaveOAuthToken(_ context.Context, id uuid.UUID, raw []byte) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.OAuthToken = raw
	return nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, id uuid.UUID) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(repo.db.sessions, id)
	for token, at := range repo.db.authTokens {
		if at.SessionID == id {
			delete(repo.db.authTokens, token)
		}
	}
	return nil
}

func (repo *sessionRepository) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var count int
	for id, sess := range repo.db.sessions {
		if sess.Expired(now) {
			delete(repo.db.sessions, id)
			count++
		}
	}
	for token, at := range repo.db.authTokens {
		if !at.Usable(now) {
			delete(repo.db.authTokens, token)
			continue
		}
		if _, ok := repo.db.sessions[at.SessionID]; !ok {
			delete(repo.db.authTokens, token)
		}
	}
	return count, nil
}

func (repo *sessionRepository) CreateAuthToken(_ context.Context, at session.AuthToken) (session.AuthToken, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.authTokens[at.Token] = &at
	return at, nil
}

func (repo *sessionRepository) ConsumeAuthToken(_ context.Context, token uuid.UUID, now time.Time) (session.AuthToken, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	at, ok := repo.db.authTokens[token]
	if !ok || !at.Usable(now) {
		return session.AuthToken{}, session.ErrAuthTokenInvalid
	}
	at.UsedAt = null.TimeFrom(now)
	return *at, nil
}
