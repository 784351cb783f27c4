package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/user"
)

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) studentCount(classID string) int {
	var count int
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID {
			count++
		}
	}
	return count
}

func (repo *classroomRepository) get(id string) (classroom.Class, bool) {
	cls, ok := repo.db.classes[id]
	if !ok {
		return classroom.Class{}, false
	}
	out := *cls
	if tchr, ok := repo.db.users[out.TeacherID]; ok {
		out.TeacherName = tchr.Name
	}
	out.StudentCount = repo.studentCount(id)
	return out, true
}

func (repo *classroomRepository) CreateClass(_ context.Context, cls classroom.Class) (classroom.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.classes[cls.ID] = &cls
	out, _ := repo.get(cls.ID)
	return out, nil
}

func (repo *classroomRepository) GetClassByID(_ context.Context, id string) (classroom.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cls, ok := repo.get(id); ok {
		return cls, nil
	}
	return classroom.Class{}, classroom.ErrNotFound
}

func (repo *classroomRepository) FilterClasses(_ context.Context, filter classroom.QueryFilter) ([]classroom.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrolled := make(map[string]struct{})
	if filter.StudentID != "" {
		for _, enr := range repo.db.enrollments {
			if enr.StudentID == filter.StudentID {
				enrolled[enr.ClassID] = struct{}{}
			}
		}
	}

	var classes []classroom.Class
	search := strings.ToLower(filter.Search)
	for id := range repo.db.classes {
		cls, _ := repo.get(id)
		if filter.TeacherID != "" && cls.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" {
			if _, ok := enrolled[cls.ID]; !ok {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(cls.Name), search) &&
			!strings.Contains(strings.ToLower(cls.Subject), search) {
			continue
		}
		classes = append(classes, cls)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].CreatedAt.After(classes[j].CreatedAt) })
	return classes, nil
}

func (repo *classroomRepository) UpdateClass(_ context.Context, cls classroom.Class) (classroom.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.classes[cls.ID]
	if !ok {
		return classroom.Class{}, classroom.ErrNotFound
	}
	if cls.Name != "" {
		orig.Name = cls.Name
	}
	if cls.Subject != "" {
		orig.Subject = cls.Subject
	}
	if cls.Description != "" {
		orig.Description = cls.Description
	}
	if cls.Schedule != (classroom.Schedule{}) {
		orig.Schedule = cls.Schedule
	}
	if cls.TeacherID != "" {
		orig.TeacherID = cls.TeacherID
	}
	if cls.GracePeriodMinutes != 0 {
		orig.GracePeriodMinutes = cls.GracePeriodMinutes
	}
	out, _ := repo.get(cls.ID)
	return out, nil
}

func (repo *classroomRepository) DeleteClassesByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.classes, id)
		for enrID, enr := range repo.db.enrollments {
			if enr.ClassID == id {
				delete(repo.db.enrollments, enrID)
			}
		}
	}
	return nil
}

func (repo *classroomRepository) CreateEnrollment(_ context.Context, enr classroom.Enrollment) (classroom.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.enrollments {
		if existing.ClassID == enr.ClassID && existing.StudentID == enr.StudentID {
			return classroom.Enrollment{}, classroom.ErrAlreadyEnrolled
		}
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classroomRepository) DeleteEnrollment(_ context.Context, classID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, enr := range repo.db.enrollments {
		if enr.ClassID == classID && enr.StudentID == studentID {
			delete(repo.db.enrollments, id)
			return nil
		}
	}
	return classroom.ErrEnrollmentNotFound
}

func (repo *classroomRepository) FilterEnrollments(_ context.Context, classID string) ([]classroom.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var enrs []classroom.Enrollment
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID {
			enrs = append(enrs, *enr)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *classroomRepository) ClassRoster(_ context.Context, classID string, faceEnrolledOnly bool) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var students []user.User
	for _, enr := range repo.db.enrollments {
		if enr.ClassID != classID {
			continue
		}
		usr, ok := repo.db.users[enr.StudentID]
		if !ok {
			continue
		}
		if faceEnrolledOnly && !usr.FaceEnrolled {
			continue
		}
		students = append(students, *usr)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}
