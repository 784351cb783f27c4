// Package testutil holds fixtures shared by service and API tests.
package testutil

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/face"
	"github.com/trezcool/hudhuria/core/user"
)

// NopLogger discards everything; error reporting is out of scope in tests.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = NopLogger{}

// NewConfig returns a test configuration with deterministic matcher policy.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Debug = false
	conf.AppName = "Hudhuria"
	conf.SecretKey = []byte("secret")
	conf.RecognitionThreshold = 0.60
	conf.MarkingThreshold = 0.55
	return conf
}

// FullFrameLocator treats the whole frame as the face region so tests can
// bypass the cascade detector. Frames narrower than MinSide report no face.
type FullFrameLocator struct {
	MinSide int
}

func (l FullFrameLocator) Locate(img *image.Gray) (face.Region, bool) {
	b := img.Bounds()
	if b.Dx() < l.MinSide || b.Dy() < l.MinSide {
		return face.Region{}, false
	}
	return face.Region{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()}, true
}

// NewExtractor returns an extractor wired to a FullFrameLocator; images
// smaller than 50px on a side count as "no face".
func NewExtractor() *face.Extractor {
	return face.NewExtractor(FullFrameLocator{MinSide: 50})
}

// FaceImage builds a deterministic synthetic face for the given seed.
// Different seeds yield images whose descriptors correlate poorly with each
// other, while the same seed always yields the same image.
func FaceImage(seed int) image.Image {
	const side = 200
	img := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			v := (x*(seed*13+7) + y*(seed*31+3) + (x^y)*seed) % 256
			img.Pix[y*side+x] = uint8(v)
		}
	}
	return img
}

// FlatImage is a uniform frame. Its descriptor has zero variance, so it
// scores 0 against every template; use it as a guaranteed non-match probe.
func FlatImage() image.Image {
	const side = 200
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

// TinyImage is below the locator's minimum side; no face is ever found in it.
func TinyImage() image.Image {
	return image.NewGray(image.Rect(0, 0, 10, 10))
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// EnrollFace stores a face template for usr built from the given seed image.
func EnrollFace(t *testing.T, repo user.Repository, usr *user.User, seed int) {
	t.Helper()

	ext := NewExtractor()
	tmpl, _, err := ext.BuildTemplate([]image.Image{FaceImage(seed)})
	if err != nil {
		t.Fatalf("EnrollFace() failed: %v", err)
	}
	if err = repo.SetFaceTemplate(context.Background(), usr.ID, tmpl); err != nil {
		t.Fatalf("EnrollFace() failed: %v", err)
	}
	usr.FaceEnrolled = true
	usr.FaceTemplate = tmpl
}

func CreateClass(
	t *testing.T,
	repo classroom.Repository,
	name, subject, teacherID string,
	schedule classroom.Schedule,
	graceMinutes int,
) classroom.Class {
	t.Helper()

	cls := classroom.Class{
		ID:                 uuid.New().String(),
		Name:               name,
		Subject:            subject,
		Schedule:           schedule,
		TeacherID:          teacherID,
		GracePeriodMinutes: graceMinutes,
		CreatedAt:          time.Now().UTC(),
	}
	cls, err := repo.CreateClass(context.Background(), cls)
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func Enroll(t *testing.T, repo classroom.Repository, classID, studentID string) classroom.Enrollment {
	t.Helper()

	enr, err := repo.CreateEnrollment(context.Background(), classroom.Enrollment{
		ID:         uuid.New().String(),
		ClassID:    classID,
		StudentID:  studentID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}
