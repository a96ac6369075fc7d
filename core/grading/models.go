package grading

type (
	// CriterionGrade is one rubric criterion's awarded marks.
	CriterionGrade struct {
		Criterion    string  `json:"criterion"`
		MarksAwarded float64 `json:"marks_awarded"`
		MaxMarks     int     `json:"max_marks"`
	}

	// QuestionGrade is the model's verdict on a single question, with marks
	// clamped server-side to the question's worth.
	QuestionGrade struct {
		QuestionID   string           `json:"question_id"`
		MarksAwarded float64          `json:"marks_awarded"`
		MaxMarks     int              `json:"max_marks"`
		Criteria     []CriterionGrade `json:"criteria,omitempty"`
		Feedback     string           `json:"feedback,omitempty"`
	}

	// Result is one submission's grade.
	Result struct {
		SubmissionID    string          `json:"submission_id"`
		StudentID       string          `json:"student_id"`
		StudentName     string          `json:"student_name,omitempty"`
		TotalMarks      float64         `json:"total_marks"`
		MaxTotalMarks   int             `json:"max_total_marks"`
		LetterGrade     string          `json:"letter_grade"`
		QuestionGrades  []QuestionGrade `json:"question_grades"`
		OverallFeedback string          `json:"overall_feedback,omitempty"`
	}

	// SubmissionError records a submission that could not be graded. One bad
	// submission never aborts the batch.
	SubmissionError struct {
		SubmissionID string `json:"submission_id"`
		StudentID    string `json:"student_id,omitempty"`
		Error        string `json:"error"`
	}

	// BatchResult summarizes a grading run over an assignment.
	// TotalSubmissions counts gradable submissions only (TURNED_IN or
	// RETURNED); students who never turned in appear in no count. The three
	// counts may still differ among themselves: a submission can score but
	// fail the grade write-back.
	BatchResult struct {
		CourseID         string            `json:"course_id"`
		AssignmentID     string            `json:"assignment_id"`
		TotalSubmissions int               `json:"total_submissions"`
		GradedCount      int               `json:"graded_count"`
		GradesAssigned   int               `json:"grades_assigned_to_classroom"`
		Results          []Result          `json:"results"`
		Errors           []SubmissionError `json:"errors,omitempty"`
	}
)
