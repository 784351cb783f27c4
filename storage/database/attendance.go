package database

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

const attendanceColumns = `id, student_id, student_name, class_id, class_name, status,
	timestamp, photo_filename, confidence, marked_by, device_id, notes, manual`

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := `
	INSERT INTO attendance (` + attendanceColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := repo.db.ExecContext(ctx, q,
		rec.ID, rec.StudentID, rec.StudentName, rec.ClassID, rec.ClassName, rec.Status,
		rec.Timestamp, rec.PhotoFilename, rec.Confidence, rec.MarkedBy, rec.DeviceID, rec.Notes, rec.Manual,
	)
	if err != nil {
		// the unique day index is the authority on double marks
		if isUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrAlreadyMarked
		}
		return attendance.Record{}, errors.Wrap(err, "creating attendance record")
	}
	return rec, nil
}

func (repo *attendanceRepository) FilterRecords(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	q, args := buildFilterQuery(`SELECT `+attendanceColumns+` FROM attendance`, filter)
	q += ` ORDER BY timestamp DESC`

	var recs []attendance.Record
	if err := repo.db.SelectContext(ctx, &recs, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering attendance")
	}
	for i := range recs {
		recs[i].Timestamp = recs[i].Timestamp.UTC()
	}
	return recs, nil
}

func (repo *attendanceRepository) CountRecords(ctx context.Context, filter attendance.QueryFilter) (int, error) {
	q, args := buildFilterQuery(`SELECT COUNT(*) FROM attendance`, filter)

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting attendance")
	}
	return count, nil
}

func (repo *attendanceRepository) HasRecordForDay(ctx context.Context, studentID, classID string, day time.Time) (bool, error) {
	q := `
	SELECT COUNT(*) FROM attendance
	WHERE student_id = $1 AND class_id = $2 AND (timestamp AT TIME ZONE 'UTC')::date = $3::date`

	var count int
	if err := repo.db.GetContext(ctx, &count, q, studentID, classID, day.UTC()); err != nil {
		return false, errors.Wrap(err, "checking attendance for day")
	}
	return count > 0, nil
}

func buildFilterQuery(q string, filter attendance.QueryFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, strings.Replace(cond, "?", "$"+itoa(len(args)), 1))
	}
	if filter.ClassID != "" {
		add(`class_id = ?`, filter.ClassID)
	}
	if filter.StudentID != "" {
		add(`student_id = ?`, filter.StudentID)
	}
	if filter.Status != "" {
		add(`status = ?`, filter.Status)
	}
	if filter.DateFrom != nil {
		add(`timestamp >= ?`, filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		add(`timestamp < ?`, filter.DateTo.UTC())
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	return q, args
}
