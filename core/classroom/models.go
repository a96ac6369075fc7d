package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// SubmissionState mirrors the classroom service's submission state machine.
// The external service owns and drives it; we only observe.
type SubmissionState string

const (
	StateCreated            SubmissionState = "CREATED"
	StateTurnedIn           SubmissionState = "TURNED_IN"
	StateReturned           SubmissionState = "RETURNED"
	StateReclaimedByStudent SubmissionState = "RECLAIMED_BY_STUDENT"
)

// Attachment types
const (
	AttachmentDriveFile = "drive_file"
	AttachmentLink      = "link"
	AttachmentYouTube   = "youtube"
)

type (
	Course struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Section string `json:"section,omitempty"`
	}

	// Assignment is coursework as seen in the classroom service. Immutable
	// once published; corrections happen outside this system.
	Assignment struct {
		ID          string    `json:"id"`
		CourseID    string    `json:"course_id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		MaxPoints   int       `json:"max_points"`
		DueDate     null.Time `json:"due_date,omitempty"`
	}

	// NewAssignment contains information needed to publish an assignment.
	NewAssignment struct {
		CourseID string     `json:"course_id" validate:"required"`
		Title    string     `json:"title" validate:"required"`
		Deadline *time.Time `json:"deadline,omitempty"`
	}

	Attachment struct {
		Type  string `json:"type"`
		ID    string `json:"id,omitempty"` // drive file ID when Type == drive_file
		Title string `json:"title,omitempty"`
		URL   string `json:"url,omitempty"`
	}

	Submission struct {
		ID          string          `json:"id"`
		StudentID   string          `json:"student_id"`
		StudentName string          `json:"student_name,omitempty"`
		State       SubmissionState `json:"state"`
		Attachments []Attachment    `json:"attachments"`
		Grade       *float64        `json:"grade,omitempty"`
	}

	// File is downloaded attachment content.
	File struct {
		Name        string
		ContentType string
		Content     []byte
	}
)

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.CourseID = core.CleanString(na.CourseID)
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}
