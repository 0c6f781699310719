package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/course"
)

type contentApi struct {
	svc *content.Service
}

// registerContentAPI serves every content kind under /content/:kind.
func registerContentAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := contentApi{svc: deps.ContentSvc}

	cg := g.Group("/content/:kind", authed...)
	cg.GET("", api.list)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
	cg.GET("/:id/course", api.locate)
	cg.GET("/:id/history", api.myHistory)
	cg.PUT("/:id/progress", api.recordProgress)
	cg.POST("/:id/answer", api.answer)
	cg.POST("/:id/submissions", api.submit)
}

// bindKindSpec returns the spec of the :kind path param, or 404 for kinds without endpoints.
func bindKindSpec(ctx echo.Context) (content.KindSpec, error) {
	kind, err := bindKind(ctx)
	if err != nil {
		return content.KindSpec{}, err
	}
	spec, err := content.GetKindSpec(kind)
	if err != nil {
		return content.KindSpec{}, errHttpNotFound
	}
	return spec, nil
}

func (api *contentApi) list(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	spec, err := bindKindSpec(ctx)
	if err != nil {
		return err
	}
	parent, err := bindParent(ctx, spec.Parents)
	if err != nil {
		return err
	}

	items, err := api.svc.List(ctx.Request().Context(), usr, spec.Kind, parent)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *contentApi) create(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	spec, err := bindKindSpec(ctx)
	if err != nil {
		return err
	}
	it := spec.New()
	if err = ctx.Bind(it); err != nil {
		return errors.Wrapf(err, "binding to %s", spec.Kind)
	}

	it, err = api.svc.Create(ctx.Request().Context(), usr, it)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, it)
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	spec, err := bindKindSpec(ctx)
	if err != nil {
		return err
	}
	it, err := api.svc.Get(ctx.Request().Context(), usr, spec.Kind, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *contentApi) update(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	spec, err := bindKindSpec(ctx)
	if err != nil {
		return err
	}
	bind := func(it content.Item) error {
		return errors.Wrapf(ctx.Bind(it), "binding to %s", spec.Kind)
	}

	it, err := api.svc.Update(ctx.Request().Context(), usr, spec.Kind, ctx.Param("id"), bind)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *contentApi) destroy(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	spec, err := bindKindSpec(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, spec.Kind, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// locate resolves the course of any object, courses and memberships included.
func (api *contentApi) locate(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	kind, err := bindKind(ctx)
	if err != nil {
		return err
	}
	loc, err := api.svc.Locate(ctx.Request().Context(), usr, course.Ref{Kind: kind, ID: ctx.Param("id")})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, loc)
}

func (api *contentApi) myHistory(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	kind, err := bindKind(ctx)
	if err != nil {
		return err
	}
	items, err := api.svc.MyHistory(ctx.Request().Context(), usr, course.Ref{Kind: kind, ID: ctx.Param("id")})
	if err != nil {
		return err
	}
	if items == nil {
		items = []content.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *contentApi) recordProgress(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	if ctx.Param("kind") != string(course.KindVideo) {
		return errHttpNotFound
	}
	var data content.VideoProgress
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VideoProgress")
	}

	h, err := api.svc.RecordVideoProgress(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *contentApi) answer(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	if ctx.Param("kind") != string(course.KindQuestion) {
		return errHttpNotFound
	}
	var data content.Answer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Answer")
	}

	h, err := api.svc.AnswerQuestion(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, h)
}

func (api *contentApi) submit(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	if ctx.Param("kind") != string(course.KindAssignment) {
		return errHttpNotFound
	}
	var data content.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	h, err := api.svc.SubmitAssignment(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, h)
}
