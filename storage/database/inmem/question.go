package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/question"
)

type questionRepository struct {
	db *questionTable
}

var _ question.Repository = (*questionRepository)(nil)

func NewQuestionRepository(db *DB) *questionRepository {
	return &questionRepository{db: db.question}
}

func (repo *questionRepository) query() []question.Question {
	qs := make([]question.Question, 0, len(repo.db.table))
	for _, q := range repo.db.table {
		qs = append(qs, *q)
	}
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].CreatedAt.Equal(qs[j].CreatedAt) {
			return qs[i].ID < qs[j].ID
		}
		return qs[i].CreatedAt.Before(qs[j].CreatedAt)
	})
	return qs
}

func (repo *questionRepository) CreateQuestions(_ context.Context, qs []question.Question) ([]question.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range qs {
		q := qs[i]
		repo.db.table[q.ID] = &q
	}
	return qs, nil
}

func (repo *questionRepository) GetQuestionsByIDs(_ context.Context, ids []string) ([]question.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	qs := make([]question.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := repo.db.table[id]; ok {
			qs = append(qs, *q)
		}
	}
	return qs, nil
}

func (repo *questionRepository) QueryAllQuestions(context.Context) ([]question.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}
