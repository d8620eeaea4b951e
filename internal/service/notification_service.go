package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/verification-service/internal/config"
	"github.com/spec-kit/verification-service/internal/events"
)

// SMSSender delivers a text message to a phone number. The default sender only
// logs; a real gateway client satisfies the same interface.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// LogSMSSender logs outbound messages instead of delivering them.
type LogSMSSender struct {
	From   string
	Logger *zap.Logger
}

// Send logs the message.
func (s *LogSMSSender) Send(_ context.Context, to, body string) error {
	s.Logger.Info("sms dispatched",
		zap.String("from", s.From),
		zap.String("to", to),
		zap.String("body", body))
	return nil
}

// NotificationService reacts to domain events: the requester gets their join
// link by SMS when a session is created, and status changes are posted to an
// optional webhook. Delivery failures are logged, never surfaced to the caller.
type NotificationService struct {
	cfg    config.NotificationConfig
	sms    SMSSender
	client *http.Client
	logger *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(cfg config.NotificationConfig, sms SMSSender, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sms == nil {
		sms = &LogSMSSender{From: cfg.SMSFrom, Logger: logger}
	}
	return &NotificationService{
		cfg:    cfg,
		sms:    sms,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Register subscribes the service to the dispatcher.
func (s *NotificationService) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventSessionCreated, s.onSessionCreated)
	dispatcher.Subscribe(events.EventSessionStatusChanged, s.onStatusChanged)
}

// onSessionCreated texts the join link to the requester. Delivery runs
// detached so the synchronous dispatcher never blocks session creation.
func (s *NotificationService) onSessionCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SessionCreatedPayload)
	if !ok {
		return nil
	}
	phone, err := NormalizePhone(payload.RequesterPhone)
	if err != nil {
		s.logger.Warn("skipping sms, unusable phone number",
			zap.String("token", event.SessionToken), zap.Error(err))
		return nil
	}
	body := "Hello " + payload.RequesterName +
		", your identity verification call is ready. Join here: " + payload.JoinLink +
		" (link valid until " + payload.LinkExpiresAt.Format(time.RFC1123) + ")"

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.sms.Send(ctx, phone, body); err != nil {
			s.logger.Error("sms delivery failed",
				zap.String("token", event.SessionToken), zap.Error(err))
		}
	}()
	return nil
}

// onStatusChanged posts the event to the configured webhook, if any.
func (s *NotificationService) onStatusChanged(_ context.Context, event events.Event) error {
	if s.cfg.WebhookURL == "" {
		return nil
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return nil
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(raw))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.Warn("webhook delivery failed",
				zap.String("token", event.SessionToken), zap.Error(err))
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			s.logger.Warn("webhook rejected event",
				zap.String("token", event.SessionToken), zap.Int("status", resp.StatusCode))
		}
	}()
	return nil
}

var phoneDigits = regexp.MustCompile(`[^0-9+]`)

// NormalizePhone reduces a phone number to E.164-ish form: strips formatting,
// keeps a single leading plus, requires 8-15 digits.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	plus := strings.HasPrefix(trimmed, "+")
	digits := phoneDigits.ReplaceAllString(trimmed, "")
	digits = strings.ReplaceAll(digits, "+", "")
	if len(digits) < 8 || len(digits) > 15 {
		return "", errInvalidPhone
	}
	if plus {
		return "+" + digits, nil
	}
	return digits, nil
}

var errInvalidPhone = errPhone("phone number must contain 8-15 digits")

type errPhone string

func (e errPhone) Error() string { return string(e) }
