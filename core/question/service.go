package question

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound = errors.New("question not found")

	nowFunc = time.Now // mockable

	// staticCriteria is the canned evaluation criteria list returned before a
	// full rubric is generated.
	staticCriteria = []string{
		"Clarity and accuracy of explanation.",
		"Depth of understanding demonstrated.",
		"Use of relevant examples.",
	}
)

type (
	Repository interface {
		// CreateQuestions persists the records as given; IDs are assigned by the caller.
		CreateQuestions(ctx context.Context, qs []Question) ([]Question, error)
		// GetQuestionsByIDs returns only the matches, silently omitting unknown IDs.
		GetQuestionsByIDs(ctx context.Context, ids []string) ([]Question, error)
		QueryAllQuestions(ctx context.Context) ([]Question, error)
	}

	Service struct {
		repo           Repository
		chat           core.ChatService
		logger         core.Logger
		fuzzyThreshold float64
	}
)

func NewService(repo Repository, chat core.ChatService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:           repo,
		chat:           chat,
		logger:         logger,
		fuzzyThreshold: conf.Grading.FuzzyMatchThreshold,
	}
}

// Generate produces count question proposals for the given topics via the
// language model. The model is clamped to the requested count.
func (svc *Service) Generate(ctx context.Context, topics []string, count int) ([]Generated, error) {
	req, err := buildGeneratePrompt(topics, count)
	if err != nil {
		return nil, err
	}
	raw, err := svc.chat.Complete(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "generating questions")
	}
	generated, err := parseGenerated(raw)
	if err != nil {
		return nil, err
	}
	if len(generated) > count {
		generated = generated[:count]
	}
	return generated, nil
}

// Regenerate produces a single replacement proposal for the given topics.
// The caller swaps it in at the original index; the stored ID never changes.
func (svc *Service) Regenerate(ctx context.Context, topics []string) (Generated, error) {
	generated, err := svc.Generate(ctx, topics, 1)
	if err != nil {
		return Generated{}, err
	}
	if len(generated) == 0 {
		return Generated{}, errors.New("model returned no question")
	}
	return generated[0], nil
}

// GenerateCustom refines free-text instructor guidance into a question proposal.
func (svc *Service) GenerateCustom(ctx context.Context, userInput string) (Generated, error) {
	raw, err := svc.chat.Complete(ctx, core.ChatRequest{
		SystemPrompt: customSystemPrompt,
		UserPrompt:   userInput,
		Temperature:  customTemperature,
	})
	if err != nil {
		return Generated{}, errors.Wrap(err, "generating custom question")
	}
	return parseCustom(raw)
}

// GenerateRubric produces an ordered rubric for one question.
func (svc *Service) GenerateRubric(ctx context.Context, text string, marks int) ([]RubricItem, error) {
	raw, err := svc.chat.Complete(ctx, core.ChatRequest{
		SystemPrompt: rubricSystemPrompt,
		UserPrompt:   fmt.Sprintf("%s (%d marks)", text, marks),
		Temperature:  rubricTemperature,
	})
	if err != nil {
		return nil, errors.Wrap(err, "generating rubric")
	}
	return parseRubric(raw)
}

func (svc *Service) Criteria() []string {
	criteria := make([]string, len(staticCriteria))
	copy(criteria, staticCriteria)
	return criteria
}

// Store persists the questions, assigning each a new stable identifier.
// The store is append-only; a rubric whose criteria do not sum to the
// question's marks is kept as supplied and only logged.
func (svc *Service) Store(ctx context.Context, newQs []NewQuestion) ([]Question, error) {
	now := nowFunc().UTC()
	qs := make([]Question, 0, len(newQs))
	for _, nq := range newQs {
		q := Question{
			ID:        newID(now),
			Text:      nq.Text,
			Marks:     nq.Marks,
			Topics:    nq.Topics,
			Rubric:    nq.Rubric,
			CreatedAt: now,
		}
		if len(q.Rubric) > 0 && q.RubricSum() != q.Marks {
			if svc.logger != nil {
				svc.logger.Warn(fmt.Sprintf(
					"question %s: rubric sums to %d but question is worth %d marks", q.ID, q.RubricSum(), q.Marks,
				))
			}
		}
		qs = append(qs, q)
	}
	return svc.repo.CreateQuestions(ctx, qs)
}

// GetByIDs looks up questions by identifier, omitting unknown IDs.
func (svc *Service) GetByIDs(ctx context.Context, ids []string) ([]Question, error) {
	return svc.repo.GetQuestionsByIDs(ctx, ids)
}

// FindByTitle locates stored questions by approximate similarity between the
// assignment title and their topics. Best effort: may match zero or many.
func (svc *Service) FindByTitle(ctx context.Context, title string) ([]Question, error) {
	all, err := svc.repo.QueryAllQuestions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}

	var matched []Question
	for _, q := range all {
		if bestSimilarity(title, q.Topics) >= svc.fuzzyThreshold {
			matched = append(matched, q)
		}
	}
	return matched, nil
}

// Resolve recovers the questions referenced by a published assignment. The
// embedded markers are authoritative when present; the fuzzy title fallback
// runs only when the description yields zero markers. Failing both is an
// explicit not-found, never a silent empty result.
func (svc *Service) Resolve(ctx context.Context, description, title string) ([]Question, error) {
	if ids := ScanMarkers(description); len(ids) > 0 {
		qs, err := svc.GetByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(err, "looking up questions by marker IDs")
		}
		if len(qs) == 0 {
			return nil, core.NewNotFoundError("no stored questions match the assignment's markers")
		}
		return qs, nil
	}

	qs, err := svc.FindByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, core.NewNotFoundError("no questions found for this assignment")
	}
	return qs, nil
}

// newID mints a stable question identifier: a timestamp prefix for
// readability plus a short random suffix for uniqueness.
func newID(now time.Time) string {
	return now.Format("20060102_150405") + "_" + uuid.NewString()[:8]
}
