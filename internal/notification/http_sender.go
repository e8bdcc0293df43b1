package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HTTPSenderConfig struct {
	NotificationURL string
	UserServiceURL  string
	Timeout         time.Duration
	Location        *time.Location
}

// HTTPSender delivers events through the notification service: an email to
// the address the user service reports, and a push message.
type HTTPSender struct {
	cfg    HTTPSenderConfig
	client *http.Client
}

func NewHTTPSender(cfg HTTPSenderConfig) *HTTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.NotificationURL = strings.TrimRight(cfg.NotificationURL, "/")
	cfg.UserServiceURL = strings.TrimRight(cfg.UserServiceURL, "/")

	return &HTTPSender{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type emailRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type pushRequest struct {
	UserID  int64  `json:"user_id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *HTTPSender) Send(ctx context.Context, e Event) error {
	msg := e.Render(s.cfg.Location)
	var errs []error

	email, err := s.lookupEmail(ctx, e.UserID)
	if err != nil {
		errs = append(errs, fmt.Errorf("lookup email: %w", err))
	}
	if email != "" {
		err := s.post(ctx, "/notify/email", emailRequest{Email: email, Subject: msg.Subject, Text: msg.EmailText})
		if err != nil {
			errs = append(errs, fmt.Errorf("send email: %w", err))
		}
	}

	err = s.post(ctx, "/notify/push", pushRequest{
		UserID:  e.UserID,
		Type:    string(e.Type),
		Title:   msg.PushTitle,
		Message: msg.PushText,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("send push: %w", err))
	}

	return errors.Join(errs...)
}

func (s *HTTPSender) lookupEmail(ctx context.Context, userID int64) (string, error) {
	if s.cfg.UserServiceURL == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/%d", s.cfg.UserServiceURL, userID), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("user service returned %d", resp.StatusCode)
	}

	var user struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", err
	}
	return user.Email, nil
}

func (s *HTTPSender) post(ctx context.Context, path string, body any) error {
	if s.cfg.NotificationURL == "" {
		return nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.NotificationURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
	return nil
}
