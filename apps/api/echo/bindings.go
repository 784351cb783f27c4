package echoapi

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/hudhuria/core"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string      `json:"access_token"`
		User  interface{} `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	FaceEnrollRequest struct {
		UserID     string   `json:"user_id" validate:"required"`
		FaceImages []string `json:"face_images" validate:"required,min=1"`
	}

	FaceImageRequest struct {
		FaceImage string `json:"face_image" validate:"required"`
	}

	FaceRecognizeRequest struct {
		ClassID   string `json:"class_id" validate:"required"`
		FaceImage string `json:"face_image" validate:"required"`
	}

	AttendanceMarkRequest struct {
		ClassID   string `json:"class_id" validate:"required"`
		FaceImage string `json:"face_image" validate:"required"`
		DeviceID  string `json:"device_id"`
	}

	SMSSendRequest struct {
		ToPhone string `json:"to_phone" validate:"required"`
		Message string `json:"message" validate:"required"`
	}
)

func (r *LoginRequest) Validate(validate *validator.Validate) error         { return validate.Struct(r) }
func (r *PasswordResetRequest) Validate(validate *validator.Validate) error { return validate.Struct(r) }

// decodeImage decodes a base64 data-URL or raw base64 JPEG/PNG payload.
func decodeImage(data string) (image.Image, error) {
	if i := strings.Index(data, ","); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, echo.NewHTTPError(400, "invalid image encoding")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, echo.NewHTTPError(400, "invalid image data")
	}
	return img, nil
}

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

// parseDateParam accepts date-only or RFC3339 timestamps.
func parseDateParam(val string) (*time.Time, bool) {
	if val == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}
