package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/user"
)

type attendanceApi struct {
	svc      *attendance.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *attendance.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{svc: svc, usrSvc: usrSvc, validate: validate}

	ag := g.Group("/attendance", jwt)
	ag.POST("/mark", api.mark, staffMiddleware())
	ag.POST("/manual", api.markManual, staffMiddleware())
	ag.GET("", api.query)
	ag.GET("/today/:class_id", api.today, staffMiddleware())
	ag.GET("/photo/:filename", api.photo, staffMiddleware())
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data AttendanceMarkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceMarkRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	img, err := decodeImage(data.FaceImage)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.Mark(ctx.Request().Context(), img, data.ClassID, claims.Subject, data.DeviceID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"message":    "Attendance marked successfully",
		"attendance": rec,
	})
}

func (api *attendanceApi) markManual(ctx echo.Context) error {
	var data attendance.ManualMark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManualMark")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.MarkManual(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"message":    "Attendance marked successfully",
		"attendance": rec,
	})
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := reportFilter(ctx)

	// students only see their own records
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.IsStudent {
		filter.StudentID = claims.Subject
	}

	recs, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) today(ctx echo.Context) error {
	statuses, err := api.svc.TodayForClass(ctx.Request().Context(), ctx.Param("class_id"))
	if err != nil {
		return err
	}
	if statuses == nil {
		statuses = []attendance.TodayStatus{}
	}
	return ctx.JSON(http.StatusOK, statuses)
}

func (api *attendanceApi) photo(ctx echo.Context) error {
	path, err := api.svc.PhotoPath(ctx.Param("filename"))
	if err != nil {
		return err
	}
	return ctx.File(path)
}
