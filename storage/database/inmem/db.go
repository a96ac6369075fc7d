package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/question"
	"github.com/trezcool/darasa/core/session"
)

type (
	DB struct {
		question *questionTable
		session  *sessionTable
	}

	questionTable struct {
		table map[string]*question.Question
		mutex sync.RWMutex
	}

	sessionTable struct {
		sessions   map[uuid.UUID]*session.Session
		authTokens map[uuid.UUID]*session.AuthToken
		mutex      sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		question: &questionTable{table: make(map[string]*question.Question)},
		session: &sessionTable{
			sessions:   make(map[uuid.UUID]*session.Session),
			authTokens: make(map[uuid.UUID]*session.AuthToken),
		},
	}
	return db, nil
}
