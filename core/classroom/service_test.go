package classroom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/question"
	"github.com/trezcool/darasa/core/session"
)

type fakeGateway struct {
	created     []Assignment
	submissions []Submission
	grades      map[string]float64
}

var _ Gateway = (*fakeGateway)(nil)

func (gw *fakeGateway) ListCourses(context.Context, oauth2.TokenSource) ([]Course, error) {
	return []Course{{ID: "c1", Name: "Computer Vision"}}, nil
}
func (gw *fakeGateway) ListAssignments(context.Context, oauth2.TokenSource, string) ([]Assignment, error) {
	return gw.created, nil
}
func (gw *fakeGateway) GetAssignment(_ context.Context, _ oauth2.TokenSource, courseID, assignmentID string) (Assignment, error) {
	for _, a := range gw.created {
		if a.ID == assignmentID && a.CourseID == courseID {
			return a, nil
		}
	}
	return Assignment{}, core.NewNotFoundError("assignment not found")
}
func (gw *fakeGateway) CreateAssignment(_ context.Context, _ oauth2.TokenSource, a Assignment) (Assignment, error) {
	a.ID = "a1"
	gw.created = append(gw.created, a)
	return a, nil
}
func (gw *fakeGateway) ListSubmissions(context.Context, oauth2.TokenSource, string, string) ([]Submission, error) {
	return gw.submissions, nil
}
func (gw *fakeGateway) SetGrade(_ context.Context, _ oauth2.TokenSource, _, _, submissionID string, grade float64) error {
	if gw.grades == nil {
		gw.grades = make(map[string]float64)
	}
	gw.grades[submissionID] = grade
	return nil
}
func (gw *fakeGateway) DownloadDriveFile(context.Context, oauth2.TokenSource, string) (File, error) {
	return File{Name: "answers.pdf", Content: []byte("x")}, nil
}

type staticTokens struct{}

func (staticTokens) TokenSource(context.Context, session.Session) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), nil
}

func newTestService(gw *fakeGateway) *Service {
	conf := &core.Config{}
	conf.Server.UpstreamTimeout = time.Minute
	return NewService(gw, staticTokens{}, conf)
}

func TestPublishComposesDescription(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(gw)

	qs := []question.Question{
		{ID: "20240101_101500_aaaa1111", Text: "Explain the Hough transform.", Marks: 7},
		{ID: "20240101_101501_bbbb2222", Text: "Describe Canny edge detection.", Marks: 5},
	}
	deadline := time.Date(2026, 9, 15, 23, 59, 0, 0, time.UTC)

	a, err := svc.Publish(context.Background(), session.Session{}, NewAssignment{
		CourseID: "c1",
		Title:    "CV Midterm",
		Deadline: &deadline,
	}, qs)
	assert.NoError(t, err)
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, 12, a.MaxPoints)
	assert.True(t, a.DueDate.Valid)

	assert.Contains(t, a.Description, "Question 1 (7 marks): Explain the Hough transform.")
	assert.Contains(t, a.Description, "Question 2 (5 marks): Describe Canny edge detection.")

	ids := question.ScanMarkers(a.Description)
	assert.Equal(t, []string{"20240101_101500_aaaa1111", "20240101_101501_bbbb2222"}, ids)
}

func TestPublishRequiresQuestions(t *testing.T) {
	svc := newTestService(&fakeGateway{})
	_, err := svc.Publish(context.Background(), session.Session{}, NewAssignment{CourseID: "c1", Title: "Empty"}, nil)
	assert.Error(t, err)
}

func TestSubmissionsNeverNil(t *testing.T) {
	svc := newTestService(&fakeGateway{})
	subs, err := svc.Submissions(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}

func TestSetGradeForwardsToGateway(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(gw)
	err := svc.SetGrade(context.Background(), session.Session{}, "c1", "a1", "s1", 9.5)
	assert.NoError(t, err)
	assert.Equal(t, 9.5, gw.grades["s1"])
}
