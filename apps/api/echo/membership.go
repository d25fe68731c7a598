package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mateatletas/backend/core/membership"
	"github.com/mateatletas/backend/core/user"
)

type membershipApi struct {
	svc      *membership.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerMembershipAPI(
	g *echo.Group,
	a *auth,
	svc *membership.Service,
	validate *validator.Validate,
) {
	api := membershipApi{
		svc:      svc,
		usrSvc:   a.usrSvc,
		validate: validate,
	}

	mg := g.Group("/memberships", a.middleware(), passwordChangeMiddleware(a.usrSvc))
	mg.GET("/expiration", api.expiration)
	mg.GET("/current", api.current)
	mg.GET("", api.query)
	mg.POST("", api.create, adminMiddleware())
	mg.POST("/:id/activate", api.activate, adminMiddleware())
	mg.POST("/:id/cancel", api.cancel, adminMiddleware())
}

// Handlers

// expiration computes the last instant of the `period` query param.
func (api *membershipApi) expiration(ctx echo.Context) error {
	exp, err := api.svc.Expiration(ctx.QueryParam("period"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exp)
}

func (api *membershipApi) current(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	m, err := api.svc.Current(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

// query lists the Memberships; non-admins only see theirs.
func (api *membershipApi) query(ctx echo.Context) error {
	filter := new(membership.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []membership.Membership{})
	}
	filter.Clean()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		filter.UserID = ctxUsr.ID
	}

	memberships, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying memberships")
	}
	if memberships == nil {
		memberships = []membership.Membership{}
	}
	return ctx.JSON(http.StatusOK, memberships)
}

func (api *membershipApi) create(ctx echo.Context) error {
	var data membership.NewMembership
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMembership")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating membership")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *membershipApi) activate(ctx echo.Context) error {
	m, err := api.svc.Activate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "activating membership")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *membershipApi) cancel(ctx echo.Context) error {
	m, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "cancelling membership")
	}
	return ctx.JSON(http.StatusOK, m)
}
