package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/question"
	"github.com/trezcool/darasa/core/session"
)

const gradingTemperature = 0.3

const gradingSystemPromptFmt = `You are a strict but fair examiner grading one student's submission against a marking rubric.
The assignment questions, each with its marks and rubric criteria, are:
%s
Grade the submission text you are given. Award marks per rubric criterion, never exceeding a criterion's marks. An unanswered question scores 0 on every criterion.
Respond with JSON only, exactly in this form:
{"question_grades": [{"question_id": "<id>", "criteria": [{"criterion": "<criterion text>", "marks_awarded": <number>}], "feedback": "<one sentence>"}], "overall_feedback": "<one or two sentences>"}`

type (
	// Classwork is the slice of the classroom service the engine depends on.
	// *classroom.Service satisfies it.
	Classwork interface {
		GetAssignment(ctx context.Context, sess session.Session, courseID, assignmentID string) (classroom.Assignment, error)
		Submissions(ctx context.Context, sess session.Session, courseID, assignmentID string) ([]classroom.Submission, error)
		SetGrade(ctx context.Context, sess session.Session, courseID, assignmentID, submissionID string, grade float64) error
		DownloadDriveFile(ctx context.Context, sess session.Session, fileID string) (classroom.File, error)
	}

	// QuestionResolver recovers an assignment's questions from its description
	// markers, falling back to title similarity. *question.Service satisfies it.
	QuestionResolver interface {
		Resolve(ctx context.Context, description, title string) ([]question.Question, error)
	}

	Engine struct {
		classwork Classwork
		questions QuestionResolver
		chat      core.ChatService
		mail      core.EmailService // nil disables grading reports
		logger    core.Logger
		scale     Scale
	}
)

func NewEngine(
	classwork Classwork,
	questions QuestionResolver,
	chat core.ChatService,
	mail core.EmailService,
	logger core.Logger,
	conf *core.Config,
) (*Engine, error) {
	scale, err := ParseScale(conf.Grading.LetterScale, conf.Grading.FallbackLetter)
	if err != nil {
		return nil, errors.Wrap(err, "parsing letter grade scale")
	}
	return &Engine{
		classwork: classwork,
		questions: questions,
		chat:      chat,
		mail:      mail,
		logger:    logger,
		scale:     scale,
	}, nil
}

// GradeBatch grades every gradable submission of an assignment. Failures are
// scoped to their submission; the batch always runs to the end. Re-running a
// batch overwrites prior grades.
func (eng *Engine) GradeBatch(ctx context.Context, sess session.Session, courseID, assignmentID string) (BatchResult, error) {
	res := BatchResult{
		CourseID:     courseID,
		AssignmentID: assignmentID,
		Results:      []Result{},
	}

	a, err := eng.classwork.GetAssignment(ctx, sess, courseID, assignmentID)
	if err != nil {
		return res, err
	}
	qs, err := eng.questions.Resolve(ctx, a.Description, a.Title)
	if err != nil {
		return res, err
	}
	subs, err := eng.classwork.Submissions(ctx, sess, courseID, assignmentID)
	if err != nil {
		return res, err
	}

	gradable := subs[:0:0]
	for _, sub := range subs {
		if sub.State == classroom.StateTurnedIn || sub.State == classroom.StateReturned {
			gradable = append(gradable, sub)
		}
	}
	res.TotalSubmissions = len(gradable)

	for _, sub := range gradable {
		r, err := eng.gradeSubmission(ctx, sess, sub, qs)
		if err != nil {
			eng.logger.Warn(fmt.Sprintf("grading submission %s", sub.ID), err)
			res.Errors = append(res.Errors, SubmissionError{
				SubmissionID: sub.ID,
				StudentID:    sub.StudentID,
				Error:        err.Error(),
			})
			continue
		}
		res.GradedCount++

		if err = eng.classwork.SetGrade(ctx, sess, courseID, assignmentID, sub.ID, r.TotalMarks); err != nil {
			eng.logger.Warn(fmt.Sprintf("assigning grade for submission %s", sub.ID), err)
			res.Errors = append(res.Errors, SubmissionError{
				SubmissionID: sub.ID,
				StudentID:    sub.StudentID,
				Error:        errors.Wrap(err, "assigning grade").Error(),
			})
		} else {
			res.GradesAssigned++
		}
		res.Results = append(res.Results, r)
	}

	eng.sendReport(sess, a, res)
	return res, nil
}

func (eng *Engine) gradeSubmission(ctx context.Context, sess session.Session, sub classroom.Submission, qs []question.Question) (Result, error) {
	text, err := eng.submissionText(ctx, sess, sub)
	if err != nil {
		return Result{}, err
	}

	raw, err := eng.chat.Complete(ctx, core.ChatRequest{
		SystemPrompt: fmt.Sprintf(gradingSystemPromptFmt, questionsJSON(qs)),
		UserPrompt:   "Student submission:\n" + text,
		Temperature:  gradingTemperature,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "invoking grading model")
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		return Result{}, err
	}
	return eng.score(sub, qs, verdict), nil
}

// submissionText concatenates attachment content. Drive files are fetched and
// text-extracted; link and video attachments are noted as-is since their
// content is not reachable from here.
func (eng *Engine) submissionText(ctx context.Context, sess session.Session, sub classroom.Submission) (string, error) {
	if len(sub.Attachments) == 0 {
		return "", errors.New("submission has no attachments")
	}

	var parts []string
	for _, att := range sub.Attachments {
		switch att.Type {
		case classroom.AttachmentDriveFile:
			f, err := eng.classwork.DownloadDriveFile(ctx, sess, att.ID)
			if err != nil {
				return "", errors.Wrapf(err, "fetching attachment %q", att.Title)
			}
			parts = append(parts, extractText(f))
		case classroom.AttachmentLink:
			parts = append(parts, fmt.Sprintf("[submitted link: %s]", att.URL))
		case classroom.AttachmentYouTube:
			parts = append(parts, fmt.Sprintf("[submitted video: %s]", att.Title))
		}
	}
	if len(parts) == 0 {
		return "", errors.New("submission has no gradable attachments")
	}
	return strings.Join(parts, "\n\n"), nil
}

type modelVerdict struct {
	QuestionGrades []struct {
		QuestionID string `json:"question_id"`
		Criteria   []struct {
			Criterion    string  `json:"criterion"`
			MarksAwarded float64 `json:"marks_awarded"`
		} `json:"criteria"`
		Feedback string `json:"feedback"`
	} `json:"question_grades"`
	OverallFeedback string `json:"overall_feedback"`
}

func parseVerdict(raw []byte) (modelVerdict, error) {
	var v modelVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(err, "parsing model verdict")
	}
	if len(v.QuestionGrades) == 0 {
		return v, errors.New("model verdict contains no question grades")
	}
	return v, nil
}

// score recomputes all totals server-side. Question grades are matched back
// by question ID, never by position, and marks are clamped to each
// criterion's worth. The model's own arithmetic and letter are ignored.
func (eng *Engine) score(sub classroom.Submission, qs []question.Question, v modelVerdict) Result {
	graded := make(map[string]int, len(v.QuestionGrades))
	for i, qg := range v.QuestionGrades {
		graded[qg.QuestionID] = i
	}

	res := Result{
		SubmissionID:    sub.ID,
		StudentID:       sub.StudentID,
		StudentName:     sub.StudentName,
		OverallFeedback: v.OverallFeedback,
	}
	for _, q := range qs {
		qg := QuestionGrade{QuestionID: q.ID, MaxMarks: q.Marks}

		if i, ok := graded[q.ID]; ok {
			got := v.QuestionGrades[i]
			qg.Feedback = got.Feedback

			if len(q.Rubric) > 0 {
				for j, item := range q.Rubric {
					cg := CriterionGrade{Criterion: item.Criterion, MaxMarks: item.Marks}
					if j < len(got.Criteria) {
						cg.MarksAwarded = clamp(got.Criteria[j].MarksAwarded, float64(item.Marks))
					}
					qg.Criteria = append(qg.Criteria, cg)
					qg.MarksAwarded += cg.MarksAwarded
				}
			} else {
				var awarded float64
				for _, c := range got.Criteria {
					awarded += c.MarksAwarded
				}
				qg.MarksAwarded = clamp(awarded, float64(q.Marks))
			}
		}
		qg.MarksAwarded = clamp(qg.MarksAwarded, float64(q.Marks))

		res.QuestionGrades = append(res.QuestionGrades, qg)
		res.TotalMarks += qg.MarksAwarded
		res.MaxTotalMarks += q.Marks
	}

	if res.MaxTotalMarks > 0 {
		res.LetterGrade = eng.scale.Letter(res.TotalMarks / float64(res.MaxTotalMarks) * 100)
	} else {
		res.LetterGrade = eng.scale.fallback
	}
	return res
}

func (eng *Engine) sendReport(sess session.Session, a classroom.Assignment, res BatchResult) {
	if eng.mail == nil || sess.Email == "" {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Grading run for %q finished.\n\n", a.Title)
	fmt.Fprintf(&b, "Submissions: %d\nGraded: %d\nGrades assigned: %d\n", res.TotalSubmissions, res.GradedCount, res.GradesAssigned)
	for _, r := range res.Results {
		name := r.StudentName
		if name == "" {
			name = r.StudentID
		}
		fmt.Fprintf(&b, "\n%s: %.1f/%d (%s)", name, r.TotalMarks, r.MaxTotalMarks, r.LetterGrade)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(&b, "\nsubmission %s failed: %s", e.SubmissionID, e.Error)
	}

	eng.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: sess.Email}},
		Subject: fmt.Sprintf("Grading report: %s", a.Title),
		BodyStr: b.String(),
	})
}

func questionsJSON(qs []question.Question) string {
	raw, err := json.MarshalIndent(qs, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func clamp(v, max float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > max:
		return max
	}
	return v
}
