package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindKind parses the :kind path param.
func bindKind(ctx echo.Context) (course.Kind, error) {
	kind, err := course.ParseKind(ctx.Param("kind"))
	if err != nil {
		return "", errHttpNotFound
	}
	return kind, nil
}

// bindParent reads the parent_kind and parent_id query params. The parent kind defaults to the
// only parent kind a kind may hang from.
func bindParent(ctx echo.Context, parents []course.Kind) (course.Ref, error) {
	ref := course.Ref{ID: core.CleanString(ctx.QueryParam("parent_id"))}
	if ref.ID == "" {
		return course.Ref{}, core.NewValidationError(nil, core.FieldError{Field: "parent_id", Error: "this field is required"})
	}

	pk := ctx.QueryParam("parent_kind")
	switch {
	case pk != "":
		kind, err := course.ParseKind(pk)
		if err != nil {
			return course.Ref{}, core.NewValidationError(err, core.FieldError{Field: "parent_kind", Error: err.Error()})
		}
		ref.Kind = kind
	case len(parents) == 1:
		ref.Kind = parents[0]
	default:
		return course.Ref{}, core.NewValidationError(nil, core.FieldError{Field: "parent_kind", Error: "this field is required"})
	}
	return ref, nil
}

// actor returns the user loaded by contextUserMiddleware.
func actor(ctx echo.Context) (user.User, error) {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	if !ok {
		return user.User{}, errors.Wrap(core.ErrUnauthenticated, "no user in context")
	}
	return usr, nil
}
