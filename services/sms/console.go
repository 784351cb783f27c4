// Package smssvc delivers guardian SMS notifications via Twilio, or logs
// them when no Twilio account is configured.
package smssvc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/hudhuria/core"
)

// consoleService logs messages instead of sending them and records each one
// in the SMS log store so the notification trail stays inspectable.
type consoleService struct {
	logRepo core.SMSLogRepository
	logger  core.Logger
	// sync runs sends inline instead of in a goroutine; tests only.
	sync bool
}

var _ core.SMSService = (*consoleService)(nil)

func NewConsoleService(logRepo core.SMSLogRepository, logger core.Logger) core.SMSService {
	return &consoleService{logRepo: logRepo, logger: logger}
}

func NewConsoleServiceMock(logRepo core.SMSLogRepository, logger core.Logger) core.SMSService {
	return &consoleService{logRepo: logRepo, logger: logger, sync: true}
}

func (svc consoleService) Send(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		if svc.sync {
			svc.send(msg)
		} else {
			go svc.send(msg)
		}
	}
}

func (svc consoleService) send(msg *core.SMSMessage) {
	if msg.ToPhone == "" || msg.Body == "" {
		return
	}
	svc.logger.Info(fmt.Sprintf("[MOCK SMS] To: %s, Message: %s", msg.ToPhone, msg.Body))

	l := core.SMSLog{
		ID:        uuid.New().String(),
		ToPhone:   msg.ToPhone,
		Message:   msg.Body,
		Status:    "mocked",
		Timestamp: time.Now().UTC(),
	}
	if err := svc.logRepo.CreateSMSLog(context.Background(), l); err != nil {
		svc.logger.Error(fmt.Sprintf("recording sms log: %v", err), err)
	}
}
