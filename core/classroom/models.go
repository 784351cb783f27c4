package classroom

import (
	"time"

	"github.com/trezcool/hudhuria/core"
)

type (
	// Schedule is the weekly slot a class meets in. Start and End are
	// "HH:MM" times of day.
	Schedule struct {
		Day   string `json:"day,omitempty" db:"schedule_day"`
		Start string `json:"start,omitempty" db:"schedule_start" validate:"omitempty,hhmm"`
		End   string `json:"end,omitempty" db:"schedule_end" validate:"omitempty,hhmm"`
	}

	Class struct {
		ID                 string    `json:"id" db:"id"`
		Name               string    `json:"name" db:"name"`
		Subject            string    `json:"subject" db:"subject"`
		Description        string    `json:"description,omitempty" db:"description"`
		Schedule           Schedule  `json:"schedule"`
		TeacherID          string    `json:"teacher_id,omitempty" db:"teacher_id"`
		TeacherName        string    `json:"teacher_name,omitempty" db:"teacher_name"`
		GracePeriodMinutes int       `json:"grace_period_minutes" db:"grace_period_minutes"`
		StudentCount       int       `json:"student_count" db:"student_count"`
		CreatedAt          time.Time `json:"created_at" db:"created_at"`
	}

	Enrollment struct {
		ID         string    `json:"id" db:"id"`
		ClassID    string    `json:"class_id" db:"class_id"`
		StudentID  string    `json:"student_id" db:"student_id"`
		EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
	}

	NewClass struct {
		Name               string   `json:"name" validate:"required"`
		Subject            string   `json:"subject" validate:"required"`
		Description        string   `json:"description"`
		Schedule           Schedule `json:"schedule"`
		TeacherID          string   `json:"teacher_id"`
		GracePeriodMinutes int      `json:"grace_period_minutes" validate:"omitempty,min=0"`
	}

	UpdateClass struct {
		Name               string    `json:"name"`
		Subject            string    `json:"subject"`
		Description        string    `json:"description"`
		Schedule           *Schedule `json:"schedule"`
		TeacherID          string    `json:"teacher_id"`
		GracePeriodMinutes *int      `json:"grace_period_minutes" validate:"omitempty,min=0"`
	}
)

func (nc *NewClass) Validate(svc *Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Subject = core.CleanString(nc.Subject)
	return svc.validate.Struct(nc)
}

func (uc *UpdateClass) Validate(svc *Service) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Subject = core.CleanString(uc.Subject)
	return svc.validate.Struct(uc)
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher_id"`
	// StudentID restricts results to classes the student is enrolled in.
	StudentID string `query:"student_id"`
}

func (f QueryFilter) IsEmpty() bool {
	return f.Search == "" && f.TeacherID == "" && f.StudentID == ""
}
