package inmemdb

import (
	"context"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/settings"
)

type smsLogRepository struct {
	db *DB
}

var _ core.SMSLogRepository = (*smsLogRepository)(nil)

func NewSMSLogRepository(db *DB) *smsLogRepository {
	return &smsLogRepository{db: db}
}

func (repo *smsLogRepository) CreateSMSLog(_ context.Context, l core.SMSLog) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.smsLogs = append(repo.db.smsLogs, l)
	return nil
}

func (repo *smsLogRepository) LatestSMSLogs(_ context.Context, limit int) ([]core.SMSLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	logs := make([]core.SMSLog, 0, limit)
	for i := len(repo.db.smsLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, repo.db.smsLogs[i])
	}
	return logs, nil
}

type settingsRepository struct {
	db *DB
}

var _ settings.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db *DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) GetSettings(_ context.Context) (settings.Settings, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.db.settings == nil {
		return settings.Settings{}, settings.ErrNotFound
	}
	return *repo.db.settings, nil
}

func (repo *settingsRepository) SaveSettings(_ context.Context, s settings.Settings) (settings.Settings, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.settings = &s
	return s, nil
}
