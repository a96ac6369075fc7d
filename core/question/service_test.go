package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
)

type fakeRepo struct {
	mu    sync.RWMutex
	table []Question
}

func (r *fakeRepo) CreateQuestions(_ context.Context, qs []Question) ([]Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = append(r.table, qs...)
	return qs, nil
}

func (r *fakeRepo) GetQuestionsByIDs(_ context.Context, ids []string) ([]Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var qs []Question
	for _, q := range r.table {
		for _, id := range ids {
			if q.ID == id {
				qs = append(qs, q)
				break
			}
		}
	}
	return qs, nil
}

func (r *fakeRepo) QueryAllQuestions(context.Context) ([]Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	qs := make([]Question, len(r.table))
	copy(qs, r.table)
	return qs, nil
}

// cannedChat replays a fixed JSON response per call.
type cannedChat struct {
	responses []string
	calls     int
	err       error
}

func (c *cannedChat) Complete(context.Context, core.ChatRequest) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	resp := c.responses[c.calls%len(c.responses)]
	c.calls++
	return []byte(resp), nil
}

func newTestService(repo Repository, chat core.ChatService) *Service {
	return &Service{repo: repo, chat: chat, fuzzyThreshold: 0.6}
}

func TestGenerate(t *testing.T) {
	resp := `{"questions": [
		{"question": "Explain DFS vs BFS traversal order.", "topic": ["graphs"], "marks": 6},
		{"question": "Prove the recursion terminates.", "topic": ["recursion"], "marks": "7"},
		{"question": "Write a topological sort.", "topic": ["graphs"]}
	]}`
	chat := &cannedChat{responses: []string{resp}}
	svc := newTestService(&fakeRepo{}, chat)

	generated, err := svc.Generate(context.Background(), []string{"graphs", "recursion"}, 3)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(generated) != 3 {
		t.Fatalf("len = %d; want 3", len(generated))
	}
	assert.Equal(t, 6, generated[0].Marks.Int())
	assert.Equal(t, 7, generated[1].Marks.Int(), "string marks must be tolerated")
	assert.Equal(t, defaultMarks, generated[2].Marks.Int(), "missing marks gets the default")
}

func TestGenerateClampsCount(t *testing.T) {
	var items []string
	for i := 0; i < 5; i++ {
		items = append(items, fmt.Sprintf(`{"question": "Q%d?", "topic": ["graphs"], "marks": 5}`, i))
	}
	chat := &cannedChat{responses: []string{`{"questions": [` + strings.Join(items, ",") + `]}`}}
	svc := newTestService(&fakeRepo{}, chat)

	generated, err := svc.Generate(context.Background(), []string{"graphs"}, 3)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(generated) != 3 {
		t.Errorf("len = %d; want clamped to 3", len(generated))
	}
}

func TestGenerateToleratesOddRootKey(t *testing.T) {
	chat := &cannedChat{responses: []string{`{"items": [{"question": "Q?", "topic": ["graphs"], "marks": 4}]}`}}
	svc := newTestService(&fakeRepo{}, chat)

	generated, err := svc.Generate(context.Background(), []string{"graphs"}, 1)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(generated) != 1 || generated[0].Text != "Q?" {
		t.Errorf("generated = %+v", generated)
	}
}

func TestGenerateRejectsNullQuestionArray(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{name: "null array", resp: `{"questions": null}`},
		{name: "null sibling only", resp: `{"note": null}`},
		{name: "empty array", resp: `{"questions": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &cannedChat{responses: []string{tt.resp}}
			svc := newTestService(&fakeRepo{}, chat)

			if _, err := svc.Generate(context.Background(), []string{"graphs"}, 1); err == nil {
				t.Fatal("expected a generation error")
			}
		})
	}
}

func TestGenerateModelFailure(t *testing.T) {
	chat := &cannedChat{err: errors.New("model unavailable")}
	svc := newTestService(&fakeRepo{}, chat)

	if _, err := svc.Generate(context.Background(), []string{"graphs"}, 2); err == nil {
		t.Fatal("expected a generation error")
	}
}

func TestGenerateRubric(t *testing.T) {
	chat := &cannedChat{responses: []string{`{"rubric": [
		{"criterion": "Correct base case.", "marks": 3},
		{"criterion": "Correct recursive step.", "marks": 4}
	]}`}}
	svc := newTestService(&fakeRepo{}, chat)

	rubric, err := svc.GenerateRubric(context.Background(), "Prove the recursion terminates.", 7)
	if err != nil {
		t.Fatalf("GenerateRubric() failed: %v", err)
	}
	if len(rubric) != 2 || rubric[0].Marks != 3 || rubric[1].Marks != 4 {
		t.Errorf("rubric = %+v", rubric)
	}
}

func TestStoreAssignsUniqueIDs(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &cannedChat{})

	newQs := []NewQuestion{
		{Text: "Q1?", Marks: 7, Topics: []string{"graphs"}},
		{Text: "Q2?", Marks: 5, Topics: []string{"recursion"}},
		{Text: "Q3?", Marks: 8, Topics: []string{"graphs", "recursion"}},
	}
	stored, err := svc.Store(context.Background(), newQs)
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("len = %d; want 3", len(stored))
	}

	seen := make(map[string]struct{})
	for _, q := range stored {
		if q.ID == "" {
			t.Error("stored question has an empty ID")
		}
		if _, dup := seen[q.ID]; dup {
			t.Errorf("duplicate ID %q", q.ID)
		}
		seen[q.ID] = struct{}{}
	}

	// lookup round-trip; unknown IDs silently omitted
	got, err := svc.GetByIDs(context.Background(), []string{stored[0].ID, "nope", stored[2].ID})
	if err != nil {
		t.Fatalf("GetByIDs() failed: %v", err)
	}
	assert.ElementsMatch(t, []string{stored[0].ID, stored[2].ID}, questionIDs(got))
}

func TestStoreKeepsMismatchedRubric(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &cannedChat{})

	stored, err := svc.Store(context.Background(), []NewQuestion{{
		Text:   "Q?",
		Marks:  10,
		Topics: []string{"graphs"},
		Rubric: []RubricItem{{Criterion: "half of it", Marks: 4}},
	}})
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	// drift between rubric sum and question marks is tolerated, not rejected
	if stored[0].RubricSum() != 4 || stored[0].Marks != 10 {
		t.Errorf("stored = %+v", stored[0])
	}
}

func TestResolvePrefersMarkers(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &cannedChat{})
	ctx := context.Background()

	stored, err := svc.Store(ctx, []NewQuestion{
		{Text: "Q1?", Marks: 7, Topics: []string{"graphs"}},
		{Text: "Q2?", Marks: 5, Topics: []string{"recursion"}},
	})
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	// a decoy whose topic matches the title; markers must win over fuzzy
	decoy, err := svc.Store(ctx, []NewQuestion{{Text: "Decoy?", Marks: 1, Topics: []string{"graphs homework"}}})
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	desc := "Intro.\n" + Marker(stored[0].ID) + "\nsome text\n" + Marker(stored[1].ID)
	qs, err := svc.Resolve(ctx, desc, "graphs homework")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	assert.ElementsMatch(t, questionIDs(stored), questionIDs(qs))
	assert.NotContains(t, questionIDs(qs), decoy[0].ID)
}

func TestResolveFallsBackToTitle(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &cannedChat{})
	ctx := context.Background()

	stored, err := svc.Store(ctx, []NewQuestion{{Text: "Q?", Marks: 7, Topics: []string{"graph theory"}}})
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	// markerless description: the title fallback runs
	qs, err := svc.Resolve(ctx, "Answer everything below.", "graph theory")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	assert.Equal(t, stored[0].ID, qs[0].ID)
}

func TestResolveMarkersWithoutMatchesDoesNotFallBack(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &cannedChat{})
	ctx := context.Background()

	if _, err := svc.Store(ctx, []NewQuestion{{Text: "Q?", Marks: 7, Topics: []string{"graph theory"}}}); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	// a marker exists but resolves to nothing; fuzzy must not run
	_, err := svc.Resolve(ctx, Marker("unknown_id"), "graph theory")
	if !core.IsNotFound(err) {
		t.Errorf("err = %v; want NotFoundError", err)
	}
}

func TestResolveNothingFound(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &cannedChat{})

	_, err := svc.Resolve(context.Background(), "no markers here", "completely unrelated title")
	if !core.IsNotFound(err) {
		t.Errorf("err = %v; want NotFoundError", err)
	}
}

func TestFlexMarksJSON(t *testing.T) {
	var g Generated
	if err := json.Unmarshal([]byte(`{"question": "Q?", "marks": "8"}`), &g); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if g.Marks.Int() != 8 {
		t.Errorf("marks = %d; want 8", g.Marks.Int())
	}
}

func questionIDs(qs []Question) []string {
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids
}
