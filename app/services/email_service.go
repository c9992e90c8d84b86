package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rallyhq/rally/config"
	"github.com/rallyhq/rally/utils"
)

var (
	ErrEmailProviderNotConfigured = errors.New("email provider not configured")
	ErrEmailInvalidResponse       = errors.New("email provider returned an invalid response")
)

// EmailMessage is one outbound email
type EmailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
	ReplyTo string

	// IdempotencyKey lets the provider drop a retried request it already accepted
	IdempotencyKey string
}

// EmailSendResult is the provider's acknowledgement of an accepted email
type EmailSendResult struct {
	MessageID string
}

// EmailProvider sends single emails through an external provider
type EmailProvider interface {
	// Configured reports whether the provider holds usable credentials
	Configured() bool
	SendEmail(ctx context.Context, msg *EmailMessage) (*EmailSendResult, error)
}

// resendRequest is the JSON body of POST /emails
type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// ResendEmailProvider talks to a Resend-compatible REST API
type ResendEmailProvider struct {
	client *resty.Client
	apiKey string
}

// NewResendEmailProvider creates a REST email provider
func NewResendEmailProvider(cfg config.EmailConfig) *ResendEmailProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ResendEmailProvider{
		client: client,
		apiKey: cfg.APIKey,
	}
}

func (p *ResendEmailProvider) Configured() bool {
	return p.apiKey != ""
}

// SendEmail posts one email. Transport failures, error statuses and
// responses without a message id are all returned as errors.
func (p *ResendEmailProvider) SendEmail(ctx context.Context, msg *EmailMessage) (*EmailSendResult, error) {
	if !p.Configured() {
		return nil, ErrEmailProviderNotConfigured
	}

	var ok resendResponse
	var apiErr resendError
	req := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey)
	if msg.IdempotencyKey != "" {
		req.SetHeader("Idempotency-Key", msg.IdempotencyKey)
	}
	resp, err := req.
		SetBody(resendRequest{
			From:    msg.From,
			To:      []string{msg.To},
			Subject: msg.Subject,
			HTML:    msg.HTML,
			ReplyTo: msg.ReplyTo,
		}).
		SetResult(&ok).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return nil, fmt.Errorf("email request failed: %w", err)
	}

	if resp.IsError() {
		if apiErr.Message != "" {
			return nil, fmt.Errorf("email provider error (%d %s): %s", resp.StatusCode(), apiErr.Name, apiErr.Message)
		}
		return nil, fmt.Errorf("email provider error: status %d", resp.StatusCode())
	}

	if ok.ID == "" {
		return nil, fmt.Errorf("%w: status %d", ErrEmailInvalidResponse, resp.StatusCode())
	}

	return &EmailSendResult{MessageID: ok.ID}, nil
}

// MockEmailProvider records emails instead of sending them
type MockEmailProvider struct {
	mu           sync.Mutex
	configured   bool
	failures     map[string]error
	SentMessages []MockEmailMessage
}

// MockEmailMessage represents a recorded mock email
type MockEmailMessage struct {
	EmailMessage
	MessageID string
	SentAt    time.Time
}

// NewMockEmailProvider creates a configured mock provider
func NewMockEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{
		configured: true,
		failures:   make(map[string]error),
	}
}

// NewUnconfiguredEmailProvider creates a mock that reports missing credentials
func NewUnconfiguredEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{failures: make(map[string]error)}
}

// FailFor makes every send to the address return err
func (m *MockEmailProvider) FailFor(address string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[utils.NormalizeEmail(address)] = err
}

func (m *MockEmailProvider) Configured() bool {
	return m.configured
}

func (m *MockEmailProvider) SendEmail(ctx context.Context, msg *EmailMessage) (*EmailSendResult, error) {
	if !m.configured {
		return nil, ErrEmailProviderNotConfigured
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failures[utils.NormalizeEmail(msg.To)]; ok {
		return nil, err
	}

	id := fmt.Sprintf("mock-%d", len(m.SentMessages)+1)
	m.SentMessages = append(m.SentMessages, MockEmailMessage{
		EmailMessage: *msg,
		MessageID:    id,
		SentAt:       utils.UTCNow(),
	})
	return &EmailSendResult{MessageID: id}, nil
}

// Sent returns a copy of the recorded messages
func (m *MockEmailProvider) Sent() []MockEmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockEmailMessage(nil), m.SentMessages...)
}

// NewEmailProvider selects the provider named in configuration
func NewEmailProvider(cfg config.EmailConfig) EmailProvider {
	if cfg.Provider == "mock" {
		return NewMockEmailProvider()
	}
	return NewResendEmailProvider(cfg)
}
