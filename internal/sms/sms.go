// Package sms delivers one-time codes to farmers' phones.
package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/logging"
)

type Sender interface {
	Send(ctx context.Context, to, message string) error
}

func OTPMessage(code string) string {
	return fmt.Sprintf("Your verification code is %s", code)
}

// LogSender writes messages to the log instead of a gateway. Development only.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, message string) error {
	s.logger.Info("sms (not delivered)", zap.String("to", logging.MaskPhone(to)), zap.String("message", message))
	return nil
}

type AfricasTalkingSender struct {
	httpClient *resty.Client
	username   string
	senderID   string
	logger     *zap.Logger
}

type atResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Status     string `json:"status"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func NewAfricasTalkingSender(baseURL, username, apiKey, senderID string, timeout time.Duration, logger *zap.Logger) *AfricasTalkingSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("apiKey", apiKey).
		SetHeader("Accept", "application/json")
	return &AfricasTalkingSender{
		httpClient: client,
		username:   username,
		senderID:   senderID,
		logger:     logger,
	}
}

func (s *AfricasTalkingSender) Send(ctx context.Context, to, message string) error {
	form := map[string]string{
		"username": s.username,
		"to":       to,
		"message":  message,
	}
	if s.senderID != "" {
		form["from"] = s.senderID
	}

	var result atResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post("/version1/messaging")
	if err != nil {
		s.logger.Error("africastalking request failed", zap.Error(err))
		return fmt.Errorf("send sms: %w", err)
	}
	if resp.IsError() {
		s.logger.Error("africastalking returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("send sms: gateway status %d", resp.StatusCode())
	}
	for _, recipient := range result.SMSMessageData.Recipients {
		// 100 processed, 101 sent, 102 queued
		if recipient.StatusCode < 100 || recipient.StatusCode > 102 {
			return fmt.Errorf("send sms: recipient status %s (%d)", recipient.Status, recipient.StatusCode)
		}
	}
	if len(result.SMSMessageData.Recipients) == 0 {
		return fmt.Errorf("send sms: no recipients accepted: %s", result.SMSMessageData.Message)
	}
	s.logger.Info("otp sms sent", zap.String("to", logging.MaskPhone(to)))
	return nil
}
