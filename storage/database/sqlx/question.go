package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/question"
)

type questionRepository struct {
	db *sqlx.DB
}

var _ question.Repository = (*questionRepository)(nil)

func NewQuestionRepository(db *sql.DB) *questionRepository {
	return &questionRepository{db: sqlx.NewDb(db, "postgres")}
}

type questionRow struct {
	ID        string         `db:"id"`
	Question  string         `db:"question"`
	Marks     int            `db:"marks"`
	Topics    []byte         `db:"topics"`
	Rubrics   sql.NullString `db:"rubrics"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

func (repo questionRepository) CreateQuestions(ctx context.Context, qs []question.Question) ([]question.Question, error) {
	// regeneration keeps the ID and replaces content in place
	const q = `
INSERT INTO question (id, question, marks, topics, rubrics, created_at)
VALUES (:id, :question, :marks, :topics, :rubrics, :created_at)
ON CONFLICT (id) DO UPDATE SET question = EXCLUDED.question,
                               marks    = EXCLUDED.marks,
                               topics   = EXCLUDED.topics,
                               rubrics  = EXCLUDED.rubrics`

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, qn := range qs {
		row, err := toRow(qn)
		if err != nil {
			return nil, err
		}
		if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
			return nil, errors.Wrapf(err, "inserting question %s", qn.ID)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing questions")
	}
	return qs, nil
}

func (repo questionRepository) GetQuestionsByIDs(ctx context.Context, ids []string) ([]question.Question, error) {
	if len(ids) == 0 {
		return []question.Question{}, nil
	}

	q, args, err := sqlx.In(`SELECT * FROM question WHERE id IN (?) ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []questionRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying questions by IDs")
	}
	return fromRows(rows)
}

func (repo questionRepository) QueryAllQuestions(ctx context.Context) ([]question.Question, error) {
	var rows []questionRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM question ORDER BY created_at, id`); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return fromRows(rows)
}

func toRow(qn question.Question) (questionRow, error) {
	topics := qn.Topics
	if topics == nil {
		topics = []string{}
	}
	rawTopics, err := json.Marshal(topics)
	if err != nil {
		return questionRow{}, errors.Wrap(err, "serializing topics")
	}

	row := questionRow{
		ID:        qn.ID,
		Question:  qn.Text,
		Marks:     qn.Marks,
		Topics:    rawTopics,
		CreatedAt: sql.NullTime{Time: qn.CreatedAt, Valid: !qn.CreatedAt.IsZero()},
	}
	if qn.Rubric != nil {
		rawRubric, err := json.Marshal(qn.Rubric)
		if err != nil {
			return questionRow{}, errors.Wrap(err, "serializing rubric")
		}
		row.Rubrics = sql.NullString{String: string(rawRubric), Valid: true}
	}
	return row, nil
}

func fromRows(rows []questionRow) ([]question.Question, error) {
	qs := make([]question.Question, 0, len(rows))
	for _, row := range rows {
		qn := question.Question{
			ID:        row.ID,
			Text:      row.Question,
			Marks:     row.Marks,
			CreatedAt: row.CreatedAt.Time,
		}
		if len(row.Topics) > 0 {
			if err := json.Unmarshal(row.Topics, &qn.Topics); err != nil {
				return nil, errors.Wrapf(err, "deserializing topics of question %s", row.ID)
			}
		}
		if row.Rubrics.Valid {
			if err := json.Unmarshal([]byte(row.Rubrics.String), &qn.Rubric); err != nil {
				return nil, errors.Wrapf(err, "deserializing rubric of question %s", row.ID)
			}
		}
		qs = append(qs, qn)
	}
	return qs, nil
}
