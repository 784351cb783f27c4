package attendance

import (
	"time"
)

const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"

	// StatusNotMarked is a synthetic status for roster views only; it is
	// never persisted.
	StatusNotMarked = "not_marked"
)

type (
	// Record is a single attendance decision. Records are immutable once
	// written; there is at most one per (student, class, UTC day).
	Record struct {
		ID            string    `json:"id" db:"id"`
		StudentID     string    `json:"student_id" db:"student_id"`
		StudentName   string    `json:"student_name" db:"student_name"`
		ClassID       string    `json:"class_id" db:"class_id"`
		ClassName     string    `json:"class_name" db:"class_name"`
		Status        string    `json:"status" db:"status"`
		Timestamp     time.Time `json:"timestamp" db:"timestamp"`
		PhotoFilename string    `json:"photo_filename,omitempty" db:"photo_filename"`
		Confidence    float64   `json:"confidence,omitempty" db:"confidence"`
		MarkedBy      string    `json:"marked_by,omitempty" db:"marked_by"`
		DeviceID      string    `json:"device_id,omitempty" db:"device_id"`
		Notes         string    `json:"notes,omitempty" db:"notes"`
		Manual        bool      `json:"manual,omitempty" db:"manual"`
	}

	ManualMark struct {
		StudentID string `json:"student_id" validate:"required"`
		ClassID   string `json:"class_id" validate:"required"`
		Status    string `json:"status" validate:"required,oneof=present late absent"`
		Notes     string `json:"notes"`
	}

	// RecognitionResult is the outcome of matching a probe image against a
	// class roster without marking attendance.
	RecognitionResult struct {
		Recognized  bool    `json:"recognized"`
		StudentID   string  `json:"student_id,omitempty"`
		StudentName string  `json:"student_name,omitempty"`
		Confidence  float64 `json:"confidence,omitempty"`
	}

	// TodayStatus is one roster row of the today-per-class view.
	TodayStatus struct {
		StudentID      string     `json:"student_id"`
		StudentName    string     `json:"student_name"`
		FaceRegistered bool       `json:"face_registered"`
		Status         string     `json:"status"`
		Timestamp      *time.Time `json:"timestamp"`
		PhotoFilename  string     `json:"photo_filename,omitempty"`
	}

	QueryFilter struct {
		ClassID   string     `json:"class_id"`
		StudentID string     `json:"student_id"`
		Status    string     `json:"status"`
		DateFrom  *time.Time `json:"date_from"`
		DateTo    *time.Time `json:"date_to"`
	}
)

func (f QueryFilter) IsEmpty() bool {
	return f.ClassID == "" && f.StudentID == "" && f.Status == "" && f.DateFrom == nil && f.DateTo == nil
}

func (mm ManualMark) Validate(svc *Service) error { return svc.validate.Struct(mm) }

// dayStart truncates t to the start of its UTC day.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
