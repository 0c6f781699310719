package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/subscription"
	"github.com/trezcool/darasa/core/user"
)

type subscriptionApi struct {
	svc      *subscription.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerSubscriptionAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := subscriptionApi{
		svc:      deps.SubscriptionSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/subscriptions", authed...)
	sg.GET("/me", api.mine)
	sg.POST("", api.purchase, adminMiddleware())
	sg.GET("/:user_id", api.retrieve, adminMiddleware())
	sg.PUT("/:user_id", api.change, adminMiddleware())
}

func (api *subscriptionApi) mine(ctx echo.Context) error {
	usr, err := actor(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.Get(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub.Status(core.Now()))
}

func (api *subscriptionApi) retrieve(ctx echo.Context) error {
	sub, err := api.svc.Get(ctx.Request().Context(), ctx.Param("user_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub.Status(core.Now()))
}

func (api *subscriptionApi) purchase(ctx echo.Context) error {
	var data subscription.Purchase
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Purchase")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	if _, err := api.usrSvc.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding user by ID")
	}

	sub, err := api.svc.Purchase(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub.Status(core.Now()))
}

func (api *subscriptionApi) change(ctx echo.Context) error {
	var data subscription.Change
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Change")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	sub, err := api.svc.Change(ctx.Request().Context(), ctx.Param("user_id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub.Status(core.Now()))
}
