package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/user"
)

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *sqlx.DB) *classroomRepository {
	return &classroomRepository{db: db}
}

type classRow struct {
	ID                 string    `db:"id"`
	Name               string    `db:"name"`
	Subject            string    `db:"subject"`
	Description        string    `db:"description"`
	ScheduleDay        string    `db:"schedule_day"`
	ScheduleStart      string    `db:"schedule_start"`
	ScheduleEnd        string    `db:"schedule_end"`
	TeacherID          string    `db:"teacher_id"`
	TeacherName        string    `db:"teacher_name"`
	GracePeriodMinutes int       `db:"grace_period_minutes"`
	StudentCount       int       `db:"student_count"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r classRow) toClass() classroom.Class {
	return classroom.Class{
		ID:          r.ID,
		Name:        r.Name,
		Subject:     r.Subject,
		Description: r.Description,
		Schedule: classroom.Schedule{
			Day:   r.ScheduleDay,
			Start: r.ScheduleStart,
			End:   r.ScheduleEnd,
		},
		TeacherID:          r.TeacherID,
		TeacherName:        r.TeacherName,
		GracePeriodMinutes: r.GracePeriodMinutes,
		StudentCount:       r.StudentCount,
		CreatedAt:          r.CreatedAt.UTC(),
	}
}

// classSelect resolves the teacher name and student count at read time so
// renames and enrollments never leave classes stale.
const classSelect = `
SELECT c.id, c.name, c.subject, c.description,
       c.schedule_day, c.schedule_start, c.schedule_end,
       c.teacher_id, COALESCE(u.name, '') AS teacher_name,
       c.grace_period_minutes, c.created_at,
       (SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS student_count
FROM classes c
LEFT JOIN users u ON u.id = c.teacher_id`

func (repo *classroomRepository) CreateClass(ctx context.Context, cls classroom.Class) (classroom.Class, error) {
	q := `
	INSERT INTO classes (id, name, subject, description, schedule_day, schedule_start, schedule_end,
	                     teacher_id, grace_period_minutes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q,
		cls.ID, cls.Name, cls.Subject, cls.Description,
		cls.Schedule.Day, cls.Schedule.Start, cls.Schedule.End,
		cls.TeacherID, cls.GracePeriodMinutes, cls.CreatedAt,
	)
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "creating class")
	}
	return repo.GetClassByID(ctx, cls.ID)
}

func (repo *classroomRepository) GetClassByID(ctx context.Context, id string) (classroom.Class, error) {
	var row classRow
	err := repo.db.GetContext(ctx, &row, classSelect+` WHERE c.id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return classroom.Class{}, classroom.ErrNotFound
		}
		return classroom.Class{}, errors.Wrap(err, "getting class")
	}
	return row.toClass(), nil
}

func (repo *classroomRepository) FilterClasses(ctx context.Context, filter classroom.QueryFilter) ([]classroom.Class, error) {
	q := classSelect
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, `(c.name ILIKE $1 OR c.subject ILIKE $1)`)
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conds = append(conds, `c.teacher_id = $`+itoa(len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conds = append(conds, `c.id IN (SELECT class_id FROM enrollments WHERE student_id = $`+itoa(len(args))+`)`)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY c.created_at DESC`

	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering classes")
	}
	classes := make([]classroom.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toClass())
	}
	return classes, nil
}

func (repo *classroomRepository) UpdateClass(ctx context.Context, cls classroom.Class) (classroom.Class, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, col+` = $`+itoa(len(args)))
	}
	if cls.Name != "" {
		set("name", cls.Name)
	}
	if cls.Subject != "" {
		set("subject", cls.Subject)
	}
	if cls.Description != "" {
		set("description", cls.Description)
	}
	if cls.Schedule != (classroom.Schedule{}) {
		set("schedule_day", cls.Schedule.Day)
		set("schedule_start", cls.Schedule.Start)
		set("schedule_end", cls.Schedule.End)
	}
	if cls.TeacherID != "" {
		set("teacher_id", cls.TeacherID)
	}
	if cls.GracePeriodMinutes != 0 {
		set("grace_period_minutes", cls.GracePeriodMinutes)
	}
	if len(sets) == 0 {
		return repo.GetClassByID(ctx, cls.ID)
	}
	args = append(args, cls.ID)

	q := `UPDATE classes SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + itoa(len(args))
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "updating class")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.Class{}, classroom.ErrNotFound
	}
	return repo.GetClassByID(ctx, cls.ID)
}

func (repo *classroomRepository) DeleteClassesByID(ctx context.Context, ids ...string) error {
	// enrollments go with the classes via ON DELETE CASCADE
	res, err := repo.db.ExecContext(ctx, `DELETE FROM classes WHERE id = ANY($1)`, pqStringArray(ids))
	if err != nil {
		return errors.Wrap(err, "deleting classes")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.ErrNotFound
	}
	return nil
}

func (repo *classroomRepository) CreateEnrollment(ctx context.Context, enr classroom.Enrollment) (classroom.Enrollment, error) {
	q := `INSERT INTO enrollments (id, class_id, student_id, enrolled_at) VALUES ($1, $2, $3, $4)`
	_, err := repo.db.ExecContext(ctx, q, enr.ID, enr.ClassID, enr.StudentID, enr.EnrolledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return classroom.Enrollment{}, classroom.ErrAlreadyEnrolled
		}
		return classroom.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return enr, nil
}

func (repo *classroomRepository) DeleteEnrollment(ctx context.Context, classID, studentID string) error {
	q := `DELETE FROM enrollments WHERE class_id = $1 AND student_id = $2`
	res, err := repo.db.ExecContext(ctx, q, classID, studentID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.ErrEnrollmentNotFound
	}
	return nil
}

func (repo *classroomRepository) FilterEnrollments(ctx context.Context, classID string) ([]classroom.Enrollment, error) {
	q := `SELECT id, class_id, student_id, enrolled_at FROM enrollments WHERE class_id = $1 ORDER BY enrolled_at`
	var enrs []classroom.Enrollment
	if err := repo.db.SelectContext(ctx, &enrs, q, classID); err != nil {
		return nil, errors.Wrap(err, "filtering enrollments")
	}
	return enrs, nil
}

func (repo *classroomRepository) ClassRoster(ctx context.Context, classID string, faceEnrolledOnly bool) ([]user.User, error) {
	q := `SELECT ` + userColumns + ` FROM users
	WHERE id IN (SELECT student_id FROM enrollments WHERE class_id = $1)`
	if faceEnrolledOnly {
		q += ` AND face_enrolled`
	}
	q += ` ORDER BY id ASC`

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying class roster")
	}
	students := make([]user.User, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toUser())
	}
	return students, nil
}
