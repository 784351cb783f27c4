// Package inmemdb backs the repositories with in-process maps; tests only.
package inmemdb

import (
	"sync"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/settings"
	"github.com/trezcool/hudhuria/core/user"
)

type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	classes     map[string]*classroom.Class
	enrollments map[string]*classroom.Enrollment
	attendance  map[string]*attendance.Record
	smsLogs     []core.SMSLog
	settings    *settings.Settings
}

func Open() (*DB, error) {
	db := &DB{
		users:       make(map[string]*user.User),
		classes:     make(map[string]*classroom.Class),
		enrollments: make(map[string]*classroom.Enrollment),
		attendance:  make(map[string]*attendance.Record),
	}
	return db, nil
}
