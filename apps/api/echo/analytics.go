package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/user"
)

type analyticsApi struct {
	svc    *attendance.Service
	usrSvc *user.Service
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service, usrSvc *user.Service) {
	api := analyticsApi{svc: svc, usrSvc: usrSvc}

	ag := g.Group("/analytics", jwt)
	ag.GET("/overview", api.overview, staffMiddleware())
	ag.GET("/class/:id", api.class, staffMiddleware())

	g.GET("/dashboard/stats", api.dashboardStats, jwt)
}

func (api *analyticsApi) overview(ctx echo.Context) error {
	ov, err := api.svc.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *analyticsApi) class(ctx echo.Context) error {
	ca, err := api.svc.ClassAnalytics(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ca)
}

// dashboardStats returns role-appropriate stats for the logged-in user.
func (api *analyticsApi) dashboardStats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rctx := ctx.Request().Context()
	switch {
	case claims.IsStudent:
		stats, err := api.svc.StudentDashboard(rctx, claims.Subject)
		if err != nil {
			return errors.Wrap(err, "computing student dashboard")
		}
		return ctx.JSON(http.StatusOK, stats)
	case claims.IsTeacher:
		stats, err := api.svc.TeacherDashboard(rctx, claims.Subject)
		if err != nil {
			return errors.Wrap(err, "computing teacher dashboard")
		}
		return ctx.JSON(http.StatusOK, stats)
	default:
		ov, err := api.svc.Overview(rctx)
		if err != nil {
			return errors.Wrap(err, "computing overview")
		}
		return ctx.JSON(http.StatusOK, ov)
	}
}
