package dummyclassroom

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

// Gateway is an in-memory classroom.Gateway. Used in test mode and local
// development without Google credentials; tests script it directly.
type Gateway struct {
	mu          sync.Mutex
	courses     []classroom.Course
	assignments map[string][]classroom.Assignment // by course ID
	submissions map[string][]classroom.Submission // by course/assignment key
	files       map[string]classroom.File
	grades      map[string]float64 // by submission ID
	badFiles    map[string]bool
	nextID      int
}

var _ classroom.Gateway = (*Gateway)(nil)

func NewGateway() *Gateway {
	return &Gateway{
		assignments: make(map[string][]classroom.Assignment),
		submissions: make(map[string][]classroom.Submission),
		files:       make(map[string]classroom.File),
		grades:      make(map[string]float64),
		badFiles:    make(map[string]bool),
	}
}

// --- scripting helpers ---

func (gw *Gateway) AddCourse(c classroom.Course) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.courses = append(gw.courses, c)
}

func (gw *Gateway) AddSubmission(courseID, assignmentID string, sub classroom.Submission) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	k := key(courseID, assignmentID)
	gw.submissions[k] = append(gw.submissions[k], sub)
}

func (gw *Gateway) AddFile(id string, f classroom.File) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.files[id] = f
}

// FailFile makes every download of the file error out.
func (gw *Gateway) FailFile(id string) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.badFiles[id] = true
}

func (gw *Gateway) Grade(submissionID string) (float64, bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	g, ok := gw.grades[submissionID]
	return g, ok
}

// --- classroom.Gateway ---

func (gw *Gateway) ListCourses(context.Context, oauth2.TokenSource) ([]classroom.Course, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]classroom.Course(nil), gw.courses...), nil
}

func (gw *Gateway) ListAssignments(_ context.Context, _ oauth2.TokenSource, courseID string) ([]classroom.Assignment, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]classroom.Assignment(nil), gw.assignments[courseID]...), nil
}

func (gw *Gateway) GetAssignment(_ context.Context, _ oauth2.TokenSource, courseID, assignmentID string) (classroom.Assignment, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	for _, a := range gw.assignments[courseID] {
		if a.ID == assignmentID {
			return a, nil
		}
	}
	return classroom.Assignment{}, core.NewNotFoundError("assignment not found")
}

func (gw *Gateway) CreateAssignment(_ context.Context, _ oauth2.TokenSource, a classroom.Assignment) (classroom.Assignment, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.nextID++
	a.ID = fmt.Sprintf("assignment-%d", gw.nextID)
	gw.assignments[a.CourseID] = append(gw.assignments[a.CourseID], a)
	return a, nil
}

func (gw *Gateway) ListSubmissions(_ context.Context, _ oauth2.TokenSource, courseID, assignmentID string) ([]classroom.Submission, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]classroom.Submission(nil), gw.submissions[key(courseID, assignmentID)]...), nil
}

func (gw *Gateway) SetGrade(_ context.Context, _ oauth2.TokenSource, courseID, assignmentID, submissionID string, grade float64) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	for _, sub := range gw.submissions[key(courseID, assignmentID)] {
		if sub.ID == submissionID {
			gw.grades[submissionID] = grade
			return nil
		}
	}
	return core.NewNotFoundError("submission not found")
}

func (gw *Gateway) DownloadDriveFile(_ context.Context, _ oauth2.TokenSource, fileID string) (classroom.File, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.badFiles[fileID] {
		return classroom.File{}, errors.New("file is unreachable")
	}
	f, ok := gw.files[fileID]
	if !ok {
		return classroom.File{}, core.NewNotFoundError("file not found")
	}
	return f, nil
}

func key(courseID, assignmentID string) string { return courseID + "/" + assignmentID }
