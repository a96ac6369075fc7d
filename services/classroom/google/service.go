package googleclassroom

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/oauth2"
	classroomapi "google.golang.org/api/classroom/v1"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

const (
	upstreamClassroom = "google classroom"
	upstreamDrive     = "google drive"

	// Google Workspace native files cannot be downloaded directly; they are
	// exported to PDF instead.
	workspaceMimePrefix = "application/vnd.google-apps"
	exportMimeType      = "application/pdf"
)

type gateway struct{}

var _ classroom.Gateway = (*gateway)(nil)

func NewGateway() classroom.Gateway { return &gateway{} }

func (gw *gateway) ListCourses(ctx context.Context, ts oauth2.TokenSource) ([]classroom.Course, error) {
	svc, err := gw.classroomService(ctx, ts)
	if err != nil {
		return nil, err
	}

	courses := make([]classroom.Course, 0)
	call := svc.Courses.List().TeacherId("me").CourseStates("ACTIVE")
	err = call.Pages(ctx, func(resp *classroomapi.ListCoursesResponse) error {
		for _, c := range resp.Courses {
			courses = append(courses, classroom.Course{ID: c.Id, Name: c.Name, Section: c.Section})
		}
		return nil
	})
	if err != nil {
		return nil, upstreamErr(upstreamClassroom, err, "listing courses")
	}
	return courses, nil
}

func (gw *gateway) ListAssignments(ctx context.Context, ts oauth2.TokenSource, courseID string) ([]classroom.Assignment, error) {
	svc, err := gw.classroomService(ctx, ts)
	if err != nil {
		return nil, err
	}

	as := make([]classroom.Assignment, 0)
	call := svc.Courses.CourseWork.List(courseID)
	err = call.Pages(ctx, func(resp *classroomapi.ListCourseWorkResponse) error {
		for _, cw := range resp.CourseWork {
			as = append(as, toAssignment(courseID, cw))
		}
		return nil
	})
	if err != nil {
		return nil, upstreamErr(upstreamClassroom, err, "listing coursework")
	}
	return as, nil
}

func (gw *gateway) GetAssignment(ctx context.Context, ts oauth2.TokenSource, courseID, assignmentID string) (classroom.Assignment, error) {
	svc, err := gw.classroomService(ctx, ts)
	if err != nil {
		return classroom.Assignment{}, err
	}

	cw, err := svc.Courses.CourseWork.Get(courseID, assignmentID).Context(ctx).Do()
	if err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 404 {
			return classroom.Assignment{}, core.NewNotFoundError("assignment not found")
		}
		return classroom.Assignment{}, upstreamErr(upstreamClassroom, err, "getting coursework")
	}
	return toAssignment(courseID, cw), nil
}

func (gw *gateway) CreateAssignment(ctx context.Context, ts oauth2.TokenSource, a classroom.Assignment) (classroom.Assignment, error) {
	svc, err := gw.classroomService(ctx, ts)
	if err != nil {
		return classroom.Assignment{}, err
	}

	cw := &classroomapi.CourseWork{
		Title:       a.Title,
		Description: a.Description,
		MaxPoints:   float64(a.MaxPoints),
		WorkType:    "ASSIGNMENT",
		State:       "PUBLISHED",
	}
	if a.DueDate.Valid {
		due := a.DueDate.Time.UTC()
		cw.DueDate = &classroomapi.Date{
			Year:  int64(due.Year()),
			Month: int64(due.Month()),
			Day:   int64(due.Day()),
		}
		cw.DueTime = &classroomapi.TimeOfDay{
			Hours:   int64(due.Hour()),
			Minutes: int64(due.Minute()),
		}
	}

	created, err := svc.Courses.CourseWork.Create(a.CourseID, cw).Context(ctx).Do()
	if err != nil {
		return classroom.Assignment{}, upstreamErr(upstreamClassroom, err, "creating coursework")
	}
	return toAssignment(a.CourseID, created), nil
}

func (gw *gateway) ListSubmissions(ctx context.Context, ts oauth2.TokenSource, courseID, assignmentID string) ([]classroom.Submission, error) {
	svc, err := gw.classroomService(ctx, ts)
	if err != nil {
		return nil, err
	}

	subs := make([]classroom.Submission, 0)
	call := svc.Courses.CourseWork.StudentSubmissions.List(courseID, assignmentID)
	err = call.Pages(ctx, func(resp *classroomapi.ListStudentSubmissionsResponse) error {
		for _, ss := range resp.StudentSubmissions {
			subs = append(subs, toSubmission(ss))
		}
		return nil
	})
	if err != nil {
		return nil, upstreamErr(upstreamClassroom, err, "listing submissions")
	}

	// student names are best effort; a missing rosters scope never fails the listing
	names := make(map[string]string)
	for i, sub := range subs {
		name, ok := names[sub.StudentID]
		if !ok {
			if prof, perr := svc.UserProfiles.Get(sub.StudentID).Context(ctx).Do(); perr == nil && prof.Name != nil {
				name = prof.Name.FullName
			}
			names[sub.StudentID] = name
		}
		subs[i].StudentName = name
	}
	return subs, nil
}

func (gw *gateway) SetGrade(ctx context.Context, ts oauth2.TokenSource, courseID, assignmentID, submissionID string, grade float64) error {
	svc, err := gw.classroomService(ctx, ts)
	if err != nil {
		return err
	}

	patch := &classroomapi.StudentSubmission{
		AssignedGrade:   grade,
		DraftGrade:      grade,
		ForceSendFields: []string{"AssignedGrade", "DraftGrade"},
	}
	_, err = svc.Courses.CourseWork.StudentSubmissions.
		Patch(courseID, assignmentID, submissionID, patch).
		UpdateMask("assignedGrade,draftGrade").
		Context(ctx).
		Do()
	if err != nil {
		return upstreamErr(upstreamClassroom, err, "patching submission grade")
	}
	return nil
}

func (gw *gateway) DownloadDriveFile(ctx context.Context, ts oauth2.TokenSource, fileID string) (classroom.File, error) {
	svc, err := driveapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return classroom.File{}, errors.Wrap(err, "initializing drive client")
	}

	meta, err := svc.Files.Get(fileID).Fields("name", "mimeType").Context(ctx).Do()
	if err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 404 {
			return classroom.File{}, core.NewNotFoundError("file not found")
		}
		return classroom.File{}, upstreamErr(upstreamDrive, err, "getting file metadata")
	}

	contentType := meta.MimeType
	var resp *http.Response
	if strings.HasPrefix(meta.MimeType, workspaceMimePrefix) {
		contentType = exportMimeType
		resp, err = svc.Files.Export(fileID, exportMimeType).Context(ctx).Download()
		if err != nil {
			return classroom.File{}, upstreamErr(upstreamDrive, err, "exporting file")
		}
	} else {
		resp, err = svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return classroom.File{}, upstreamErr(upstreamDrive, err, "downloading file")
		}
	}
	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return classroom.File{}, upstreamErr(upstreamDrive, err, "reading file content")
	}
	return classroom.File{Name: meta.Name, ContentType: contentType, Content: content}, nil
}

func (gw *gateway) classroomService(ctx context.Context, ts oauth2.TokenSource) (*classroomapi.Service, error) {
	svc, err := classroomapi.NewService(ctx, option.WithTokenSource(ts))
	return svc, errors.Wrap(err, "initializing classroom client")
}

func toAssignment(courseID string, cw *classroomapi.CourseWork) classroom.Assignment {
	a := classroom.Assignment{
		ID:          cw.Id,
		CourseID:    courseID,
		Title:       cw.Title,
		Description: cw.Description,
		MaxPoints:   int(cw.MaxPoints),
	}
	if cw.DueDate != nil {
		due := time.Date(
			int(cw.DueDate.Year), time.Month(cw.DueDate.Month), int(cw.DueDate.Day),
			0, 0, 0, 0, time.UTC,
		)
		if cw.DueTime != nil {
			due = due.Add(time.Duration(cw.DueTime.Hours)*time.Hour + time.Duration(cw.DueTime.Minutes)*time.Minute)
		}
		a.DueDate = null.TimeFrom(due)
	}
	return a
}

func toSubmission(ss *classroomapi.StudentSubmission) classroom.Submission {
	sub := classroom.Submission{
		ID:          ss.Id,
		StudentID:   ss.UserId,
		State:       classroom.SubmissionState(ss.State),
		Attachments: []classroom.Attachment{},
	}
	if ss.AssignedGrade != 0 {
		grade := ss.AssignedGrade
		sub.Grade = &grade
	}
	if ss.AssignmentSubmission != nil {
		for _, att := range ss.AssignmentSubmission.Attachments {
			switch {
			case att.DriveFile != nil:
				sub.Attachments = append(sub.Attachments, classroom.Attachment{
					Type:  classroom.AttachmentDriveFile,
					ID:    att.DriveFile.Id,
					Title: att.DriveFile.Title,
					URL:   att.DriveFile.AlternateLink,
				})
			case att.Link != nil:
				sub.Attachments = append(sub.Attachments, classroom.Attachment{
					Type:  classroom.AttachmentLink,
					Title: att.Link.Title,
					URL:   att.Link.Url,
				})
			case att.YouTubeVideo != nil:
				sub.Attachments = append(sub.Attachments, classroom.Attachment{
					Type:  classroom.AttachmentYouTube,
					ID:    att.YouTubeVideo.Id,
					Title: att.YouTubeVideo.Title,
					URL:   att.YouTubeVideo.AlternateLink,
				})
			}
		}
	}
	return sub
}

func upstreamErr(service string, err error, msg string) error {
	status := 0
	if gerr, ok := err.(*googleapi.Error); ok {
		status = gerr.Code
	}
	return core.NewUpstreamError(service, status, errors.Wrap(err, msg))
}
