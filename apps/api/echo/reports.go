package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/report"
	"github.com/trezcool/hudhuria/core/user"
)

type reportsApi struct {
	svc    *report.Service
	usrSvc *user.Service
}

func registerReportsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *report.Service, usrSvc *user.Service) {
	api := reportsApi{svc: svc, usrSvc: usrSvc}

	rg := g.Group("/reports", jwt, staffMiddleware())
	rg.GET("/export/excel", api.exportExcel)
	rg.GET("/export/pdf", api.exportPDF)
}

func (api *reportsApi) exportExcel(ctx echo.Context) error {
	buf, err := api.svc.Excel(ctx.Request().Context(), reportFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "building excel report")
	}

	filename := fmt.Sprintf("attendance_report_%s.xlsx", time.Now().Format("20060102"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (api *reportsApi) exportPDF(ctx echo.Context) error {
	buf, err := api.svc.PDF(ctx.Request().Context(), reportFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "building pdf report")
	}

	filename := fmt.Sprintf("attendance_report_%s.pdf", time.Now().Format("20060102"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

func reportFilter(ctx echo.Context) attendance.QueryFilter {
	filter := attendance.QueryFilter{
		ClassID:   ctx.QueryParam("class_id"),
		StudentID: ctx.QueryParam("student_id"),
		Status:    ctx.QueryParam("status"),
	}
	if from, ok := parseDateParam(ctx.QueryParam("date_from")); ok {
		filter.DateFrom = from
	}
	if to, ok := parseDateParam(ctx.QueryParam("date_to")); ok {
		filter.DateTo = to
	}
	return filter
}
