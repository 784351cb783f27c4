package smssvc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/trezcool/hudhuria/core"
)

type twilioService struct {
	client  *twilio.RestClient
	from    string
	logRepo core.SMSLogRepository
	logger  core.Logger
}

var _ core.SMSService = (*twilioService)(nil)

func NewTwilioService(conf *core.Config, logRepo core.SMSLogRepository, logger core.Logger) core.SMSService {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: conf.Twilio.AccountSID,
		Password: conf.Twilio.AuthToken,
	})
	return &twilioService{
		client:  client,
		from:    conf.Twilio.PhoneNumber,
		logRepo: logRepo,
		logger:  logger,
	}
}

func (svc twilioService) Send(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		msg := msg
		go svc.send(msg)
	}
}

func (svc twilioService) send(msg *core.SMSMessage) {
	if msg.ToPhone == "" || msg.Body == "" {
		return
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(msg.ToPhone)
	params.SetFrom(svc.from)
	params.SetBody(msg.Body)

	status := "sent"
	if _, err := svc.client.Api.CreateMessage(params); err != nil {
		status = "failed"
		svc.logger.Error(fmt.Sprintf("SMS send failed: %v", err), err)
	}

	l := core.SMSLog{
		ID:        uuid.New().String(),
		ToPhone:   msg.ToPhone,
		Message:   msg.Body,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	if err := svc.logRepo.CreateSMSLog(context.Background(), l); err != nil {
		svc.logger.Error(fmt.Sprintf("recording sms log: %v", err), err)
	}
}
