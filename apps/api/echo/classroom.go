package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/question"
)

type classroomApi struct {
	svc      *classroom.Service
	qsvc     *question.Service
	engine   *grading.Engine
	validate *validator.Validate
}

func registerClassroomAPI(
	g *echo.Group,
	authed echo.MiddlewareFunc,
	svc *classroom.Service,
	qsvc *question.Service,
	engine *grading.Engine,
	validate *validator.Validate,
) {
	api := classroomApi{svc: svc, qsvc: qsvc, engine: engine, validate: validate}

	cg := g.Group("/classroom", authed)
	cg.GET("/courses", api.courses)
	cg.GET("/assignments/:course_id", api.assignments)
	cg.POST("/create-assignment", api.createAssignment)
	cg.GET("/submissions/:course_id/:assignment_id", api.submissions)
	cg.POST("/grade-submissions", api.gradeSubmissions)

	g.GET("/download/drive-file/:file_id", api.downloadDriveFile, authed)
}

// Requests

type (
	createAssignmentRequest struct {
		classroom.NewAssignment
		QuestionIDs []string `json:"question_ids" validate:"required,min=1"`
	}

	gradeRequest struct {
		CourseID     string `json:"course_id" validate:"required"`
		AssignmentID string `json:"assignment_id" validate:"required"`
	}
)

func (r *createAssignmentRequest) Validate(validate *validator.Validate) error {
	if err := r.NewAssignment.Validate(validate); err != nil {
		return err
	}
	return validate.StructPartial(r, "QuestionIDs")
}

func (r *gradeRequest) Validate(validate *validator.Validate) error {
	r.CourseID = core.CleanString(r.CourseID)
	r.AssignmentID = core.CleanString(r.AssignmentID)
	return validate.Struct(r)
}

// Handlers

func (api *classroomApi) courses(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	courses, err := api.svc.Courses(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"courses": courses})
}

func (api *classroomApi) assignments(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	as, err := api.svc.Assignments(ctx.Request().Context(), sess, ctx.Param("course_id"))
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"assignments": as})
}

func (api *classroomApi) createAssignment(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	var data createAssignmentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to createAssignmentRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	qs, err := api.qsvc.GetByIDs(ctx.Request().Context(), data.QuestionIDs)
	if err != nil {
		return errors.Wrap(err, "getting questions by IDs")
	}
	if len(qs) != len(data.QuestionIDs) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "question_ids",
			Error: fmt.Sprintf("%d of %d questions not found", len(data.QuestionIDs)-len(qs), len(data.QuestionIDs)),
		})
	}

	a, err := api.svc.Publish(ctx.Request().Context(), sess, data.NewAssignment, qs)
	if err != nil {
		return errors.Wrap(err, "publishing assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *classroomApi) submissions(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	subs, err := api.svc.Submissions(ctx.Request().Context(), sess, ctx.Param("course_id"), ctx.Param("assignment_id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"submissions": subs})
}

// gradeSubmissions runs a grading batch. Per-submission failures reduce the
// counts but the batch itself still responds 200.
func (api *classroomApi) gradeSubmissions(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	var data gradeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to gradeRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.engine.GradeBatch(ctx.Request().Context(), sess, data.CourseID, data.AssignmentID)
	if err != nil {
		return errors.Wrap(err, "grading submissions")
	}
	return ctx.JSON(http.StatusOK, res)
}

// downloadDriveFile proxies attachment content through the session's
// credentials so the browser never holds classroom-service tokens.
func (api *classroomApi) downloadDriveFile(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	f, err := api.svc.DownloadDriveFile(ctx.Request().Context(), sess, ctx.Param("file_id"))
	if err != nil {
		return errors.Wrap(err, "downloading drive file")
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	if f.Name != "" {
		ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, f.Name))
	}
	return ctx.Blob(http.StatusOK, contentType, f.Content)
}
