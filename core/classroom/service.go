package classroom

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("class not found")
	ErrAlreadyEnrolled    = errors.New("student already enrolled")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		// FilterClasses applies AND operation on available QueryFilter fields.
		FilterClasses(ctx context.Context, filter QueryFilter) ([]Class, error)
		// UpdateClass persists non-zero fields.
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		// DeleteClassesByID also removes the classes' enrollments.
		DeleteClassesByID(ctx context.Context, ids ...string) error

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, classID, studentID string) error
		FilterEnrollments(ctx context.Context, classID string) ([]Enrollment, error)
		// ClassRoster returns the students enrolled in a class, sorted by
		// ascending student ID. When faceEnrolledOnly is set, only students
		// with a stored face template are returned.
		ClassRoster(ctx context.Context, classID string, faceEnrolledOnly bool) ([]user.User, error)
	}

	// UserGetter resolves a user by ID; satisfied by user.Service.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		usrGtr   UserGetter
		validate *validator.Validate
	}
)

func NewService(repo Repository, usrGtr UserGetter, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		usrGtr:   usrGtr,
		validate: validate,
	}
}

func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	cls := Class{
		ID:                 uuid.New().String(),
		Name:               nc.Name,
		Subject:            nc.Subject,
		Description:        nc.Description,
		Schedule:           nc.Schedule,
		TeacherID:          nc.TeacherID,
		GracePeriodMinutes: nc.GracePeriodMinutes,
		CreatedAt:          time.Now().UTC(),
	}
	if cls.TeacherID != "" {
		if tchr, err := svc.usrGtr.GetByID(ctx, cls.TeacherID); err == nil {
			cls.TeacherName = tchr.Name
		}
	}
	return svc.repo.CreateClass(ctx, cls)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Class, error) {
	return svc.repo.FilterClasses(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateClass) (Class, error) {
	cls := Class{
		ID:          id,
		Name:        uc.Name,
		Subject:     uc.Subject,
		Description: uc.Description,
		TeacherID:   uc.TeacherID,
	}
	if uc.Schedule != nil {
		cls.Schedule = *uc.Schedule
	}
	if uc.GracePeriodMinutes != nil {
		cls.GracePeriodMinutes = *uc.GracePeriodMinutes
	}
	if cls.TeacherID != "" {
		if tchr, err := svc.usrGtr.GetByID(ctx, cls.TeacherID); err == nil {
			cls.TeacherName = tchr.Name
		}
	}
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteClassesByID(ctx, ids...)
}

func (svc *Service) Enroll(ctx context.Context, classID, studentID string) (Enrollment, error) {
	if _, err := svc.repo.GetClassByID(ctx, classID); err != nil {
		return Enrollment{}, err
	}
	if _, err := svc.usrGtr.GetByID(ctx, studentID); err != nil {
		return Enrollment{}, err
	}
	enr := Enrollment{
		ID:         uuid.New().String(),
		ClassID:    classID,
		StudentID:  studentID,
		EnrolledAt: time.Now().UTC(),
	}
	return svc.repo.CreateEnrollment(ctx, enr)
}

func (svc *Service) Unenroll(ctx context.Context, classID, studentID string) error {
	return svc.repo.DeleteEnrollment(ctx, classID, studentID)
}

func (svc *Service) Enrollments(ctx context.Context, classID string) ([]Enrollment, error) {
	return svc.repo.FilterEnrollments(ctx, classID)
}

// Students returns the class roster.
func (svc *Service) Students(ctx context.Context, classID string) ([]user.User, error) {
	return svc.repo.ClassRoster(ctx, classID, false)
}

// EnrolledFaces returns the roster restricted to students with a face
// template, in the order matching candidates are evaluated.
func (svc *Service) EnrolledFaces(ctx context.Context, classID string) ([]user.User, error) {
	return svc.repo.ClassRoster(ctx, classID, true)
}
