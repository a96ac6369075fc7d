package classroom

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/oauth2"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/question"
	"github.com/trezcool/darasa/core/session"
)

// TokenSourcer yields per-session credentials for upstream calls.
// *session.Service satisfies it.
type TokenSourcer interface {
	TokenSource(ctx context.Context, sess session.Session) (oauth2.TokenSource, error)
}

// Gateway abstracts the external classroom service. Implementations live
// under services/classroom.
type Gateway interface {
	ListCourses(ctx context.Context, ts oauth2.TokenSource) ([]Course, error)
	ListAssignments(ctx context.Context, ts oauth2.TokenSource, courseID string) ([]Assignment, error)
	GetAssignment(ctx context.Context, ts oauth2.TokenSource, courseID, assignmentID string) (Assignment, error)
	CreateAssignment(ctx context.Context, ts oauth2.TokenSource, a Assignment) (Assignment, error)
	ListSubmissions(ctx context.Context, ts oauth2.TokenSource, courseID, assignmentID string) ([]Submission, error)
	SetGrade(ctx context.Context, ts oauth2.TokenSource, courseID, assignmentID, submissionID string, grade float64) error
	DownloadDriveFile(ctx context.Context, ts oauth2.TokenSource, fileID string) (File, error)
}

type Service struct {
	gw       Gateway
	sessions TokenSourcer
	timeout  time.Duration
}

func NewService(gw Gateway, sessions TokenSourcer, conf *core.Config) *Service {
	return &Service{
		gw:       gw,
		sessions: sessions,
		timeout:  conf.Server.UpstreamTimeout,
	}
}

func (svc *Service) Courses(ctx context.Context, sess session.Session) ([]Course, error) {
	ctx, cancel := svc.upstreamCtx(ctx)
	defer cancel()

	ts, err := svc.sessions.TokenSource(ctx, sess)
	if err != nil {
		return nil, err
	}
	courses, err := svc.gw.ListCourses(ctx, ts)
	return courses, errors.Wrap(err, "listing courses")
}

func (svc *Service) Assignments(ctx context.Context, sess session.Session, courseID string) ([]Assignment, error) {
	ctx, cancel := svc.upstreamCtx(ctx)
	defer cancel()

	ts, err := svc.sessions.TokenSource(ctx, sess)
	if err != nil {
		return nil, err
	}
	as, err := svc.gw.ListAssignments(ctx, ts, courseID)
	return as, errors.Wrap(err, "listing assignments")
}

func (svc *Service) GetAssignment(ctx context.Context, sess session.Session, courseID, assignmentID string) (Assignment, error) {
	ctx, cancel := svc.upstreamCtx(ctx)
	defer cancel()

	ts, err := svc.sessions.TokenSource(ctx, sess)
	if err != nil {
		return Assignment{}, err
	}
	a, err := svc.gw.GetAssignment(ctx, ts, courseID, assignmentID)
	return a, errors.Wrap(err, "getting assignment")
}

// Publish creates coursework from stored questions. The description embeds
// every question's text followed by its ID marker so grading can later
// recover the exact questions from the assignment alone. Creation is a
// single upstream call; nothing is left behind on failure.
func (svc *Service) Publish(ctx context.Context, sess session.Session, na NewAssignment, qs []question.Question) (Assignment, error) {
	if len(qs) == 0 {
		return Assignment{}, errors.New("no questions to publish")
	}

	ctx, cancel := svc.upstreamCtx(ctx)
	defer cancel()

	ts, err := svc.sessions.TokenSource(ctx, sess)
	if err != nil {
		return Assignment{}, err
	}

	maxPoints := 0
	for _, q := range qs {
		maxPoints += q.Marks
	}
	a := Assignment{
		CourseID:    na.CourseID,
		Title:       na.Title,
		Description: ComposeDescription(qs),
		MaxPoints:   maxPoints,
	}
	if na.Deadline != nil {
		a.DueDate = null.TimeFrom(na.Deadline.UTC())
	}

	created, err := svc.gw.CreateAssignment(ctx, ts, a)
	return created, errors.Wrap(err, "creating assignment")
}

func (svc *Service) Submissions(ctx context.Context, sess session.Session, courseID, assignmentID string) ([]Submission, error) {
	ctx, cancel := svc.upstreamCtx(ctx)
	defer cancel()

	ts, err := svc.sessions.TokenSource(ctx, sess)
	if err != nil {
		return nil, err
	}
	subs, err := svc.gw.ListSubmissions(ctx, ts, courseID, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []Submission{}
	}
	return subs, nil
}

func (svc *Service) SetGrade(ctx context.Context, sess session.Session, courseID, assignmentID, submissionID string, grade float64) error {
	ctx, cancel := svc.upstreamCtx(ctx)
	defer cancel()

	ts, err := svc.sessions.TokenSource(ctx, sess)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.gw.SetGrade(ctx, ts, courseID, assignmentID, submissionID, grade), "setting grade")
}

func (svc *Service) DownloadDriveFile(ctx context.Context, sess session.Session, fileID string) (File, error) {
	ctx, cancel := svc.upstreamCtx(ctx)
	defer cancel()

	ts, err := svc.sessions.TokenSource(ctx, sess)
	if err != nil {
		return File{}, err
	}
	f, err := svc.gw.DownloadDriveFile(ctx, ts, fileID)
	return f, errors.Wrap(err, "downloading file")
}

func (svc *Service) upstreamCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, svc.timeout)
}

// ComposeDescription lays out questions as numbered blocks, each followed by
// its ID marker.
func ComposeDescription(qs []question.Question) string {
	var b strings.Builder
	b.WriteString("Answer all questions below.")
	for i, q := range qs {
		fmt.Fprintf(&b, "\n\nQuestion %d (%d marks): %s\n%s", i+1, q.Marks, q.Text, question.Marker(q.ID))
	}
	return b.String()
}
