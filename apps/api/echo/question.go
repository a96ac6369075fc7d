package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/question"
)

type questionApi struct {
	svc      *question.Service
	validate *validator.Validate
}

func registerQuestionAPI(
	g *echo.Group,
	authed echo.MiddlewareFunc,
	svc *question.Service,
	validate *validator.Validate,
) {
	api := questionApi{svc: svc, validate: validate}

	ag := g.Group("", authed)
	ag.POST("/generate-questions", api.generate)
	ag.POST("/regenerate-question", api.regenerate)
	ag.POST("/generate-custom-question", api.generateCustom)
	ag.POST("/get-evaluation-criteria", api.criteria)
	ag.POST("/generate-evaluation-rubrics", api.generateRubrics)
	ag.POST("/store-questions", api.store)
	ag.POST("/get-questions-by-ids", api.getByIDs)
	ag.GET("/get-assignment-questions/:title", api.getByTitle)
}

// Requests

type (
	generateRequest struct {
		Topics       []string `json:"topic" validate:"topics"`
		NumQuestions int      `json:"num_questions" validate:"required,gte=1"`
	}

	regenerateRequest struct {
		Topics []string `json:"topic" validate:"topics"`
	}

	customQuestionRequest struct {
		UserInput string `json:"user_input" validate:"required"`
	}

	rubricsRequest struct {
		Question string `json:"question" validate:"required"`
		Marks    int    `json:"marks" validate:"required,gt=0"`
	}

	storeRequest struct {
		Questions []question.NewQuestion `json:"questions" validate:"required,min=1,dive"`
	}

	byIDsRequest struct {
		QuestionIDs []string `json:"question_ids" validate:"required,min=1"`
	}
)

func (r *generateRequest) Validate(validate *validator.Validate) error {
	for i, t := range r.Topics {
		r.Topics[i] = core.CleanString(t)
	}
	return validate.Struct(r)
}

func (r *regenerateRequest) Validate(validate *validator.Validate) error {
	for i, t := range r.Topics {
		r.Topics[i] = core.CleanString(t)
	}
	return validate.Struct(r)
}

func (r *customQuestionRequest) Validate(validate *validator.Validate) error {
	r.UserInput = core.CleanString(r.UserInput)
	return validate.Struct(r)
}

func (r *rubricsRequest) Validate(validate *validator.Validate) error {
	r.Question = core.CleanString(r.Question)
	return validate.Struct(r)
}

// Handlers

func (api *questionApi) generate(ctx echo.Context) error {
	var data generateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to generateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	qs, err := api.svc.Generate(ctx.Request().Context(), data.Topics, data.NumQuestions)
	if err != nil {
		return errors.Wrap(err, "generating questions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"questions": qs})
}

func (api *questionApi) regenerate(ctx echo.Context) error {
	var data regenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to regenerateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Regenerate(ctx.Request().Context(), data.Topics)
	if err != nil {
		return errors.Wrap(err, "regenerating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) generateCustom(ctx echo.Context) error {
	var data customQuestionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to customQuestionRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.GenerateCustom(ctx.Request().Context(), data.UserInput)
	if err != nil {
		return errors.Wrap(err, "generating custom question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) criteria(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"criteria": api.svc.Criteria()})
}

func (api *questionApi) generateRubrics(ctx echo.Context) error {
	var data rubricsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to rubricsRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rubric, err := api.svc.GenerateRubric(ctx.Request().Context(), data.Question, data.Marks)
	if err != nil {
		return errors.Wrap(err, "generating rubric")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"rubric": rubric})
}

func (api *questionApi) store(ctx echo.Context) error {
	var data storeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to storeRequest")
	}
	for i := range data.Questions {
		if err := data.Questions[i].Validate(api.validate); err != nil {
			return err
		}
	}
	if len(data.Questions) == 0 {
		return core.NewValidationError(errors.New("no questions to store"))
	}

	qs, err := api.svc.Store(ctx.Request().Context(), data.Questions)
	if err != nil {
		return errors.Wrap(err, "storing questions")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"questions": qs})
}

func (api *questionApi) getByIDs(ctx echo.Context) error {
	var data byIDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to byIDsRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	qs, err := api.svc.GetByIDs(ctx.Request().Context(), data.QuestionIDs)
	if err != nil {
		return errors.Wrap(err, "getting questions by IDs")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"questions": qs})
}

func (api *questionApi) getByTitle(ctx echo.Context) error {
	title := core.CleanString(ctx.Param("title"))
	if title == "" {
		return core.NewValidationError(errors.New("title is required"))
	}

	qs, err := api.svc.FindByTitle(ctx.Request().Context(), title)
	if err != nil {
		return errors.Wrap(err, "finding questions by title")
	}
	if len(qs) == 0 {
		return core.NewNotFoundError("no questions match this title")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"questions": qs})
}
