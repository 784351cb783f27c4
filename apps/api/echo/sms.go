package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/user"
)

const smsLogLimit = 100

type smsApi struct {
	svc      core.SMSService
	logRepo  core.SMSLogRepository
	conf     *core.Config
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerSMSAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc core.SMSService,
	logRepo core.SMSLogRepository,
	conf *core.Config,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := smsApi{svc: svc, logRepo: logRepo, conf: conf, usrSvc: usrSvc, validate: validate}

	sg := g.Group("/sms", jwt, staffMiddleware())
	sg.POST("/send", api.send)
	sg.GET("/logs", api.logs)
	sg.GET("/status", api.status)
}

func (api *smsApi) send(ctx echo.Context) error {
	var data SMSSendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SMSSendRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	api.svc.Send(&core.SMSMessage{ToPhone: data.ToPhone, Body: data.Message})
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "SMS queued for delivery"})
}

func (api *smsApi) logs(ctx echo.Context) error {
	logs, err := api.logRepo.LatestSMSLogs(ctx.Request().Context(), smsLogLimit)
	if err != nil {
		return errors.Wrap(err, "querying sms logs")
	}
	if logs == nil {
		logs = []core.SMSLog{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *smsApi) status(ctx echo.Context) error {
	provider := "mocked"
	if api.conf.Twilio.Enabled() {
		provider = "twilio"
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"sms_enabled": api.conf.Twilio.Enabled(),
		"provider":    provider,
	})
}
