package core

import (
	"context"
	"time"
)

type (
	SMSMessage struct {
		ToPhone string
		Body    string
	}

	// SMSLog is a persisted trace of an outbound SMS.
	SMSLog struct {
		ID        string    `json:"id" db:"id"`
		ToPhone   string    `json:"to_phone" db:"to_phone"`
		Message   string    `json:"message" db:"message"`
		Status    string    `json:"status" db:"status"`
		Timestamp time.Time `json:"timestamp" db:"timestamp"`
	}

	SMSLogRepository interface {
		CreateSMSLog(ctx context.Context, l SMSLog) error
		// LatestSMSLogs returns up to limit logs, most recent first.
		LatestSMSLogs(ctx context.Context, limit int) ([]SMSLog, error)
	}

	// SMSService delivers guardian notifications. Delivery is best-effort and
	// asynchronous: Send must not block the caller and its outcome never
	// affects an attendance decision that has already been committed.
	SMSService interface {
		Send(messages ...*SMSMessage)
	}
)
