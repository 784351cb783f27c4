package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/hudhuria/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (repo *attendanceRepository) CreateRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// the write lock makes this check-and-insert atomic, mirroring the
	// unique day index in postgres
	for _, existing := range repo.db.attendance {
		if existing.StudentID == rec.StudentID && existing.ClassID == rec.ClassID &&
			sameUTCDay(existing.Timestamp, rec.Timestamp) {
			return attendance.Record{}, attendance.ErrAlreadyMarked
		}
	}
	repo.db.attendance[rec.ID] = &rec
	return rec, nil
}

func matches(rec attendance.Record, filter attendance.QueryFilter) bool {
	if filter.ClassID != "" && rec.ClassID != filter.ClassID {
		return false
	}
	if filter.StudentID != "" && rec.StudentID != filter.StudentID {
		return false
	}
	if filter.Status != "" && rec.Status != filter.Status {
		return false
	}
	if filter.DateFrom != nil && rec.Timestamp.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && !rec.Timestamp.Before(*filter.DateTo) {
		return false
	}
	return true
}

func (repo *attendanceRepository) FilterRecords(_ context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var recs []attendance.Record
	for _, rec := range repo.db.attendance {
		if matches(*rec, filter) {
			recs = append(recs, *rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return recs, nil
}

func (repo *attendanceRepository) CountRecords(_ context.Context, filter attendance.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, rec := range repo.db.attendance {
		if matches(*rec, filter) {
			count++
		}
	}
	return count, nil
}

func (repo *attendanceRepository) HasRecordForDay(_ context.Context, studentID, classID string, day time.Time) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, rec := range repo.db.attendance {
		if rec.StudentID == studentID && rec.ClassID == classID && sameUTCDay(rec.Timestamp, day) {
			return true, nil
		}
	}
	return false, nil
}
