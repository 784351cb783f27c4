package echoapi

import (
	"fmt"
	"image"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/user"
)

type faceApi struct {
	usrSvc   *user.Service
	attSvc   *attendance.Service
	validate *validator.Validate
}

func registerFaceAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc *user.Service, attSvc *attendance.Service, validate *validator.Validate) {
	api := faceApi{usrSvc: usrSvc, attSvc: attSvc, validate: validate}

	fg := g.Group("/face", jwt)
	fg.POST("/register", api.register, staffMiddleware())
	fg.POST("/detect", api.detect)
	fg.POST("/recognize", api.recognize, staffMiddleware())
}

func (api *faceApi) register(ctx echo.Context) error {
	var data FaceEnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FaceEnrollRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	images := make([]image.Image, 0, len(data.FaceImages))
	for i, raw := range data.FaceImages {
		img, err := decodeImage(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid image at index %d", i))
		}
		images = append(images, img)
	}

	n, err := api.usrSvc.EnrollFace(ctx.Request().Context(), data.UserID, images)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message":          "Face registered successfully",
		"images_processed": n,
	})
}

func (api *faceApi) detect(ctx echo.Context) error {
	var data FaceImageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FaceImageRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	img, err := decodeImage(data.FaceImage)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"face_detected": api.attSvc.HasFace(img)})
}

func (api *faceApi) recognize(ctx echo.Context) error {
	var data FaceRecognizeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FaceRecognizeRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	img, err := decodeImage(data.FaceImage)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image")
	}

	res, err := api.attSvc.Recognize(ctx.Request().Context(), img, data.ClassID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
