package echoapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/question"
)

func TestListCourses(t *testing.T) {
	env := newTestEnv(t)
	sess := env.authedSession(t)
	env.gateway.AddCourse(classroom.Course{ID: "course-1", Name: "Algorithms"})

	req := newRequest(http.MethodGet, "/api/classroom/courses")
	req.AddCookie(env.sessionCookie(t, sess))
	rec := env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Courses []classroom.Course `json:"courses"`
	}
	unmarshallBody(t, rec, &resp)
	assert.Len(t, resp.Courses, 1)
	assert.Equal(t, "Algorithms", resp.Courses[0].Name)
}

func TestCreateAssignmentUnknownQuestion(t *testing.T) {
	env := newTestEnv(t)
	sess := env.authedSession(t)

	body := marshallObj(t, map[string]interface{}{
		"course_id":    "course-1",
		"title":        "Week 3",
		"question_ids": []string{"no-such-id"},
	})
	req := newRequest(http.MethodPost, "/api/classroom/create-assignment", body)
	req.AddCookie(env.sessionCookie(t, sess))
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question_ids")
}

func TestDownloadDriveFile(t *testing.T) {
	env := newTestEnv(t)
	sess := env.authedSession(t)
	env.gateway.AddFile("file-1", classroom.File{
		Name:        "essay.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4 stub"),
	})

	req := newRequest(http.MethodGet, "/api/download/drive-file/file-1")
	req.AddCookie(env.sessionCookie(t, sess))
	rec := env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "essay.pdf")
	assert.Equal(t, "%PDF-1.4 stub", rec.Body.String())

	t.Run("missing file", func(t *testing.T) {
		req := newRequest(http.MethodGet, "/api/download/drive-file/nope")
		req.AddCookie(env.sessionCookie(t, sess))
		assert.Equal(t, http.StatusNotFound, env.do(req).Code)
	})
}

// Full instructor round trip: generate, store, publish, collect, grade.
func TestAssignmentLifecycle(t *testing.T) {
	env := newTestEnv(t, []byte(`{
		"questions": [
			{"question": "Explain BFS on an undirected graph.", "topic": ["graphs"], "marks": 4},
			{"question": "Show that a tree with n nodes has n-1 edges.", "topic": ["graphs"], "marks": 3},
			{"question": "Write a recursive factorial and give its recurrence.", "topic": ["recursion"], "marks": 3}
		]
	}`))
	sess := env.authedSession(t)
	env.gateway.AddCourse(classroom.Course{ID: "course-1", Name: "Algorithms"})

	authed := func(req *http.Request) *http.Request {
		req.AddCookie(env.sessionCookie(t, sess))
		return req
	}

	// generate
	body := marshallObj(t, map[string]interface{}{"topic": []string{"graphs", "recursion"}, "num_questions": 3})
	rec := env.do(authed(newRequest(http.MethodPost, "/api/generate-questions", body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var gen struct {
		Questions []question.Generated `json:"questions"`
	}
	unmarshallBody(t, rec, &gen)
	assert.Len(t, gen.Questions, 3)

	// store
	newQs := make([]map[string]interface{}, len(gen.Questions))
	for i, q := range gen.Questions {
		newQs[i] = map[string]interface{}{"question": q.Text, "marks": q.Marks.Int(), "topic": q.Topics}
	}
	rec = env.do(authed(newRequest(http.MethodPost, "/api/store-questions", marshallObj(t, map[string]interface{}{"questions": newQs}))))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var stored struct {
		Questions []question.Question `json:"questions"`
	}
	unmarshallBody(t, rec, &stored)
	assert.Len(t, stored.Questions, 3)
	ids := make([]string, len(stored.Questions))
	for i, q := range stored.Questions {
		ids[i] = q.ID
	}

	// publish
	body = marshallObj(t, map[string]interface{}{"course_id": "course-1", "title": "Graphs & Recursion", "question_ids": ids})
	rec = env.do(authed(newRequest(http.MethodPost, "/api/classroom/create-assignment", body)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var a classroom.Assignment
	unmarshallBody(t, rec, &a)
	assert.Equal(t, 10, a.MaxPoints)
	// the description carries exactly one marker per question, in order
	assert.Equal(t, ids, question.ScanMarkers(a.Description))

	// collect: two turned-in submissions, one with an unreadable attachment
	env.gateway.AddFile("file-good", classroom.File{Name: "answers.txt", ContentType: "text/plain", Content: []byte("my answers")})
	env.gateway.FailFile("file-bad")
	env.gateway.AddSubmission("course-1", a.ID, classroom.Submission{
		ID: "sub-1", StudentID: "student-1", StudentName: "Asha", State: classroom.StateTurnedIn,
		Attachments: []classroom.Attachment{{Type: classroom.AttachmentDriveFile, ID: "file-good", Title: "answers.txt"}},
	})
	env.gateway.AddSubmission("course-1", a.ID, classroom.Submission{
		ID: "sub-2", StudentID: "student-2", StudentName: "Ben", State: classroom.StateTurnedIn,
		Attachments: []classroom.Attachment{{Type: classroom.AttachmentDriveFile, ID: "file-bad", Title: "essay.pdf"}},
	})

	rec = env.do(authed(newRequest(http.MethodGet, "/api/classroom/submissions/course-1/"+a.ID)))
	assert.Equal(t, http.StatusOK, rec.Code)
	var subsResp struct {
		Submissions []classroom.Submission `json:"submissions"`
	}
	unmarshallBody(t, rec, &subsResp)
	assert.Len(t, subsResp.Submissions, 2)

	// grade; the model verdict awards 4 + 3 + 1 = 8 of 10
	env.chat.Push([]byte(fmt.Sprintf(`{
		"question_grades": [
			{"question_id": %q, "criteria": [{"criterion": "Answer", "marks_awarded": 4}], "feedback": "Complete."},
			{"question_id": %q, "criteria": [{"criterion": "Answer", "marks_awarded": 3}], "feedback": "Correct proof."},
			{"question_id": %q, "criteria": [{"criterion": "Answer", "marks_awarded": 1}], "feedback": "Recurrence missing."}
		],
		"overall_feedback": "Solid on graphs, revise recursion."
	}`, ids[0], ids[1], ids[2])))

	body = marshallObj(t, map[string]string{"course_id": "course-1", "assignment_id": a.ID})
	rec = env.do(authed(newRequest(http.MethodPost, "/api/classroom/grade-submissions", body)))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var batch grading.BatchResult
	unmarshallBody(t, rec, &batch)
	assert.Equal(t, 2, batch.TotalSubmissions)
	assert.Equal(t, 1, batch.GradedCount)
	assert.Equal(t, 1, batch.GradesAssigned)
	assert.Len(t, batch.Results, 1)
	assert.Len(t, batch.Errors, 1)
	assert.Equal(t, "sub-2", batch.Errors[0].SubmissionID)

	r := batch.Results[0]
	assert.Equal(t, "sub-1", r.SubmissionID)
	assert.Equal(t, 8.0, r.TotalMarks)
	assert.Equal(t, 10, r.MaxTotalMarks)
	assert.Equal(t, "B", r.LetterGrade)

	// the grade made it back to the classroom service
	grade, ok := env.gateway.Grade("sub-1")
	assert.True(t, ok)
	assert.Equal(t, 8.0, grade)
	_, ok = env.gateway.Grade("sub-2")
	assert.False(t, ok)
}
