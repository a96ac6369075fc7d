package grading

import (
	"context"
	"fmt"
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/question"
	"github.com/trezcool/darasa/core/session"
	emailsvc "github.com/trezcool/darasa/services/email"
)

type fakeClasswork struct {
	assignment  classroom.Assignment
	submissions []classroom.Submission
	badFiles    map[string]bool // file IDs whose download fails
	grades      map[string]float64
	gradeErrs   map[string]bool // submission IDs whose write-back fails
}

var _ Classwork = (*fakeClasswork)(nil)

func (cw *fakeClasswork) GetAssignment(context.Context, session.Session, string, string) (classroom.Assignment, error) {
	return cw.assignment, nil
}

func (cw *fakeClasswork) Submissions(context.Context, session.Session, string, string) ([]classroom.Submission, error) {
	return cw.submissions, nil
}

func (cw *fakeClasswork) SetGrade(_ context.Context, _ session.Session, _, _, submissionID string, grade float64) error {
	if cw.gradeErrs[submissionID] {
		return errors.New("insufficient permissions")
	}
	if cw.grades == nil {
		cw.grades = make(map[string]float64)
	}
	cw.grades[submissionID] = grade
	return nil
}

func (cw *fakeClasswork) DownloadDriveFile(_ context.Context, _ session.Session, fileID string) (classroom.File, error) {
	if cw.badFiles[fileID] {
		return classroom.File{}, errors.New("file not found")
	}
	return classroom.File{Name: fileID + ".pdf", Content: []byte("not a real pdf")}, nil
}

type fixedResolver []question.Question

func (r fixedResolver) Resolve(context.Context, string, string) ([]question.Question, error) {
	return r, nil
}

// replayChat answers every completion with the same payload.
type replayChat struct {
	response string
	calls    int
}

func (c *replayChat) Complete(context.Context, core.ChatRequest) ([]byte, error) {
	c.calls++
	return []byte(c.response), nil
}

var testQuestions = []question.Question{
	{
		ID: "20240101_101500_aaaa1111", Text: "Explain BFS.", Marks: 6,
		Rubric: []question.RubricItem{
			{Criterion: "Definition", Marks: 2},
			{Criterion: "Worked example", Marks: 4},
		},
	},
	{ID: "20240101_101501_bbbb2222", Text: "Define recursion.", Marks: 4},
}

// a full-marks-on-q1, half-marks-on-q2 verdict, question order reversed
const testVerdict = `{
	"question_grades": [
		{"question_id": "20240101_101501_bbbb2222", "criteria": [{"criterion": "Answer", "marks_awarded": 2}], "feedback": "Partially correct."},
		{"question_id": "20240101_101500_aaaa1111", "criteria": [{"criterion": "Definition", "marks_awarded": 2}, {"criterion": "Worked example", "marks_awarded": 4}], "feedback": "Complete."}
	],
	"overall_feedback": "Good attempt."
}`

func driveSub(id, fileID string, state classroom.SubmissionState) classroom.Submission {
	return classroom.Submission{
		ID:        id,
		StudentID: "student-" + id,
		State:     state,
		Attachments: []classroom.Attachment{
			{Type: classroom.AttachmentDriveFile, ID: fileID, Title: fileID + ".pdf"},
		},
	}
}

func newTestEngine(t *testing.T, cw *fakeClasswork, chat core.ChatService) *Engine {
	t.Helper()
	conf := &core.Config{}
	conf.Grading.LetterScale = "A:90,B:80,C:70,D:60"
	conf.Grading.FallbackLetter = "F"
	eng, err := NewEngine(cw, fixedResolver(testQuestions), chat, nil, core.NopLogger{}, conf)
	assert.NoError(t, err)
	return eng
}

func TestGradeBatchPartialFailure(t *testing.T) {
	cw := &fakeClasswork{
		assignment: classroom.Assignment{ID: "a1", Title: "Algorithms"},
		badFiles:   map[string]bool{"f3": true},
	}
	for i := 1; i <= 5; i++ {
		cw.submissions = append(cw.submissions, driveSub(fmt.Sprintf("s%d", i), fmt.Sprintf("f%d", i), classroom.StateTurnedIn))
	}

	eng := newTestEngine(t, cw, &replayChat{response: testVerdict})
	res, err := eng.GradeBatch(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)

	assert.Equal(t, 5, res.TotalSubmissions)
	assert.Equal(t, 4, res.GradedCount)
	assert.Equal(t, 4, res.GradesAssigned)
	assert.Len(t, res.Results, 4)
	if assert.Len(t, res.Errors, 1) {
		assert.Equal(t, "s3", res.Errors[0].SubmissionID)
	}
	assert.NotContains(t, cw.grades, "s3")
}

func TestGradeBatchScoresServerSide(t *testing.T) {
	cw := &fakeClasswork{
		assignment:  classroom.Assignment{ID: "a1", Title: "Algorithms"},
		submissions: []classroom.Submission{driveSub("s1", "f1", classroom.StateTurnedIn)},
	}

	eng := newTestEngine(t, cw, &replayChat{response: testVerdict})
	res, err := eng.GradeBatch(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)

	if !assert.Len(t, res.Results, 1) {
		return
	}
	r := res.Results[0]
	assert.Equal(t, 8.0, r.TotalMarks) // 6 + 2, matched by ID despite reversed verdict order
	assert.Equal(t, 10, r.MaxTotalMarks)
	assert.Equal(t, "B", r.LetterGrade)
	assert.Equal(t, "Good attempt.", r.OverallFeedback)

	// question grades come back in assignment order
	assert.Equal(t, "20240101_101500_aaaa1111", r.QuestionGrades[0].QuestionID)
	assert.Equal(t, 6.0, r.QuestionGrades[0].MarksAwarded)
	assert.Len(t, r.QuestionGrades[0].Criteria, 2)
	assert.Equal(t, 2.0, r.QuestionGrades[1].MarksAwarded)

	assert.Equal(t, 8.0, cw.grades["s1"])
}

func TestGradeBatchClampsInflatedMarks(t *testing.T) {
	inflated := `{"question_grades": [
		{"question_id": "20240101_101500_aaaa1111", "criteria": [{"criterion": "Definition", "marks_awarded": 50}, {"criterion": "Worked example", "marks_awarded": -3}]},
		{"question_id": "20240101_101501_bbbb2222", "criteria": [{"criterion": "Answer", "marks_awarded": 99}]}
	]}`
	cw := &fakeClasswork{
		assignment:  classroom.Assignment{ID: "a1"},
		submissions: []classroom.Submission{driveSub("s1", "f1", classroom.StateTurnedIn)},
	}

	eng := newTestEngine(t, cw, &replayChat{response: inflated})
	res, err := eng.GradeBatch(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)

	r := res.Results[0]
	assert.Equal(t, 2.0, r.QuestionGrades[0].MarksAwarded) // 2 clamped + 0 clamped
	assert.Equal(t, 4.0, r.QuestionGrades[1].MarksAwarded) // clamped to question marks
	assert.Equal(t, 6.0, r.TotalMarks)
}

func TestGradeBatchIdempotent(t *testing.T) {
	cw := &fakeClasswork{
		assignment: classroom.Assignment{ID: "a1"},
		submissions: []classroom.Submission{
			driveSub("s1", "f1", classroom.StateTurnedIn),
			driveSub("s2", "f2", classroom.StateReturned), // regrade path
		},
	}

	eng := newTestEngine(t, cw, &replayChat{response: testVerdict})
	first, err := eng.GradeBatch(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)
	second, err := eng.GradeBatch(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, cw.grades, 2) // overwritten, not accumulated
}

func TestGradeBatchSkipsUnturnedSubmissions(t *testing.T) {
	cw := &fakeClasswork{
		assignment: classroom.Assignment{ID: "a1"},
		submissions: []classroom.Submission{
			driveSub("s1", "f1", classroom.StateCreated),
			driveSub("s2", "f2", classroom.StateReclaimedByStudent),
			driveSub("s3", "f3", classroom.StateTurnedIn),
		},
	}

	eng := newTestEngine(t, cw, &replayChat{response: testVerdict})
	res, err := eng.GradeBatch(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)
	assert.Equal(t, 1, res.TotalSubmissions)
	assert.Equal(t, 1, res.GradedCount)
	assert.Empty(t, res.Errors) // skipped submissions are not errors
}

func TestGradeBatchCountsDivergeOnWriteBackFailure(t *testing.T) {
	cw := &fakeClasswork{
		assignment:  classroom.Assignment{ID: "a1"},
		submissions: []classroom.Submission{driveSub("s1", "f1", classroom.StateTurnedIn)},
		gradeErrs:   map[string]bool{"s1": true},
	}

	eng := newTestEngine(t, cw, &replayChat{response: testVerdict})
	res, err := eng.GradeBatch(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)
	assert.Equal(t, 1, res.GradedCount)
	assert.Equal(t, 0, res.GradesAssigned)
	assert.Len(t, res.Results, 1)
	assert.Len(t, res.Errors, 1)
}

func TestGradeBatchModelFailure(t *testing.T) {
	cw := &fakeClasswork{
		assignment:  classroom.Assignment{ID: "a1"},
		submissions: []classroom.Submission{driveSub("s1", "f1", classroom.StateTurnedIn)},
	}

	eng := newTestEngine(t, cw, &replayChat{response: "not json"})
	res, err := eng.GradeBatch(context.Background(), session.Session{}, "c1", "a1")
	assert.NoError(t, err)
	assert.Equal(t, 1, res.TotalSubmissions)
	assert.Equal(t, 0, res.GradedCount)
	assert.Len(t, res.Errors, 1)
}

func TestGradeBatchEmailsReport(t *testing.T) {
	cw := &fakeClasswork{
		assignment: classroom.Assignment{ID: "a1", Title: "Algorithms"},
		badFiles:   map[string]bool{"f2": true},
		submissions: []classroom.Submission{
			driveSub("s1", "f1", classroom.StateTurnedIn),
			driveSub("s2", "f2", classroom.StateTurnedIn),
		},
	}

	conf := &core.Config{
		AppName:          "Darasa",
		DefaultFromEmail: mail.Address{Address: "noreply@localhost"},
	}
	conf.Grading.LetterScale = "A:90,B:80,C:70,D:60"
	conf.Grading.FallbackLetter = "F"

	eng, err := NewEngine(
		cw, fixedResolver(testQuestions), &replayChat{response: testVerdict},
		emailsvc.NewConsoleServiceMock(conf), core.NopLogger{}, conf,
	)
	assert.NoError(t, err)

	sess := session.Session{Email: "teacher@test.test"}
	_, err = eng.GradeBatch(context.Background(), sess, "c1", "a1")
	assert.NoError(t, err)

	var report *core.EmailMessage
	for i := range emailsvc.SentMessages {
		if emailsvc.SentMessages[i].Subject == "Grading report: Algorithms" {
			report = &emailsvc.SentMessages[i]
		}
	}
	if assert.NotNil(t, report, "grading report was not sent") {
		assert.Equal(t, "teacher@test.test", report.To[0].Address)
		assert.Contains(t, report.BodyStr, "Submissions: 2")
		assert.Contains(t, report.BodyStr, "Graded: 1")
		assert.Contains(t, report.BodyStr, "Grades assigned: 1")
		assert.Contains(t, report.BodyStr, "student-s1: 8.0/10 (B)")
		assert.Contains(t, report.BodyStr, "submission s2 failed")
	}
}
