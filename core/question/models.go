package question

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type (
	// RubricItem is one evaluation criterion of a Question's rubric.
	RubricItem struct {
		Criterion string `json:"criterion" validate:"required"`
		Marks     int    `json:"marks" validate:"required,gt=0"`
	}

	// Question is a stored, identifiable assignment question. The ID is
	// assigned once at persistence time and never changes; text, marks and
	// rubric may be replaced in place by regeneration.
	Question struct {
		ID        string       `json:"id"`
		Text      string       `json:"question"`
		Marks     int          `json:"marks"`
		Topics    []string     `json:"topic"`
		Rubric    []RubricItem `json:"rubrics"`
		CreatedAt time.Time    `json:"created_at"` // UTC
	}

	// NewQuestion contains information needed to persist a Question.
	NewQuestion struct {
		Text   string       `json:"question" validate:"required"`
		Marks  int          `json:"marks" validate:"required,gt=0"`
		Topics []string     `json:"topic" validate:"topics"`
		Rubric []RubricItem `json:"rubrics" validate:"omitempty,dive"`
	}

	// Generated is a model-produced question proposal, not yet persisted.
	Generated struct {
		Text   string    `json:"question"`
		Topics []string  `json:"topic"`
		Marks  flexMarks `json:"marks"`
	}
)

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Text = core.CleanString(nq.Text)
	for i, t := range nq.Topics {
		nq.Topics[i] = core.CleanString(t)
	}
	return validate.Struct(nq)
}

// RubricSum returns the total marks across rubric criteria.
func (q Question) RubricSum() int {
	var sum int
	for _, item := range q.Rubric {
		sum += item.Marks
	}
	return sum
}

// flexMarks tolerates the model returning marks as a number or a numeric string.
type flexMarks int

func (m *flexMarks) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*m = 0
		return nil
	}
	*m = flexMarks(n)
	return nil
}

func (m flexMarks) Int() int { return int(m) }
