package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core"
)

type smsLogRepository struct {
	db *sqlx.DB
}

var _ core.SMSLogRepository = (*smsLogRepository)(nil)

func NewSMSLogRepository(db *sqlx.DB) *smsLogRepository {
	return &smsLogRepository{db: db}
}

func (repo *smsLogRepository) CreateSMSLog(ctx context.Context, l core.SMSLog) error {
	q := `INSERT INTO sms_logs (id, to_phone, message, status, timestamp) VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, q, l.ID, l.ToPhone, l.Message, l.Status, l.Timestamp); err != nil {
		return errors.Wrap(err, "creating sms log")
	}
	return nil
}

func (repo *smsLogRepository) LatestSMSLogs(ctx context.Context, limit int) ([]core.SMSLog, error) {
	q := `SELECT id, to_phone, message, status, timestamp FROM sms_logs ORDER BY timestamp DESC LIMIT $1`
	var logs []core.SMSLog
	if err := repo.db.SelectContext(ctx, &logs, q, limit); err != nil {
		return nil, errors.Wrap(err, "querying sms logs")
	}
	for i := range logs {
		logs[i].Timestamp = logs[i].Timestamp.UTC()
	}
	return logs, nil
}
