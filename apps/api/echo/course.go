package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	metricsvc "github.com/trezcool/darasa/services/metrics"
)

type courseApi struct {
	svc      *course.Service
	validate *validator.Validate
	metrics  *metricsvc.Metrics
}

func registerCourseAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:      deps.CourseSvc,
		validate: deps.Validate,
		metrics:  deps.Metrics,
	}

	cg := g.Group("/courses", authed...)
	cg.GET("", api.list)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)

	// memberships
	cg.POST("/:id/enroll", api.enroll)
	cg.POST("/:id/unenroll", api.unenroll)
	cg.GET("/:id/members", api.listMembers)
	cg.PUT("/:id/members/:user_id", api.updateMember)

	// the multipart envelope comes on top of the CSV file itself
	limit := fmt.Sprintf("%dK", api.svc.Importer().MaxBytes()/1024+64)
	cg.POST("/:id/members/import", api.importMembers, middleware.BodyLimit(limit))
}

func (api *courseApi) list(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.List(ctx.Request().Context(), usr, ctx.QueryParam("mine") == "true")
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	data.Clean()
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	data.Clean()
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	h, err := api.svc.Enroll(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	h, err := api.svc.Unenroll(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *courseApi) listMembers(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	var statuses []string
	for _, s := range ctx.QueryParams()["status"] {
		for _, st := range strings.Split(s, ",") {
			if st = core.CleanString(st, true /* lower */); st != "" {
				statuses = append(statuses, st)
			}
		}
	}

	members, err := api.svc.ListMembers(ctx.Request().Context(), usr, ctx.Param("id"), statuses...)
	if err != nil {
		return err
	}
	if members == nil {
		members = []course.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *courseApi) updateMember(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateMember
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}
	data.Clean()
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	h, err := api.svc.UpdateMember(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("user_id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, h)
}

// importMembers enrolls the users of the CSV uploaded as the "file" form field.
func (api *courseApi) importMembers(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: "a CSV file is required"})
	}
	if fh.Size > api.svc.Importer().MaxBytes() {
		return core.NewValidationError(course.ErrImportTooLarge, core.FieldError{
			Field: "file",
			Error: fmt.Sprintf("the file exceeds %d bytes", api.svc.Importer().MaxBytes()),
		})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	summary, err := api.svc.Import(ctx.Request().Context(), usr, ctx.Param("id"), f)
	if api.metrics != nil {
		api.metrics.ObserveImport(summary, err)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}
