package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifyServer struct {
	mu     sync.Mutex
	emails []emailRequest
	pushes []pushRequest
	status int
}

func (s *notifyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Path {
	case "/notify/email":
		var req emailRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.emails = append(s.emails, req)
	case "/notify/push":
		var req pushRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.pushes = append(s.pushes, req)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if s.status != 0 {
		w.WriteHeader(s.status)
	}
}

func TestHTTPSender_EmailAndPush(t *testing.T) {
	notify := &notifyServer{}
	ns := httptest.NewServer(notify)
	defer ns.Close()

	users := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/42", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "email": "ann@example.com"})
	}))
	defer users.Close()

	s := NewHTTPSender(HTTPSenderConfig{NotificationURL: ns.URL + "/", UserServiceURL: users.URL, Timeout: time.Second})
	require.NoError(t, s.Send(context.Background(), testEvent(BookingCreated, 42)))

	require.Len(t, notify.emails, 1)
	assert.Equal(t, "ann@example.com", notify.emails[0].Email)
	assert.Equal(t, "Бронирование создано", notify.emails[0].Subject)

	require.Len(t, notify.pushes, 1)
	assert.Equal(t, int64(42), notify.pushes[0].UserID)
	assert.Equal(t, "booking_created", notify.pushes[0].Type)
}

func TestHTTPSender_UnknownUserStillPushes(t *testing.T) {
	notify := &notifyServer{}
	ns := httptest.NewServer(notify)
	defer ns.Close()

	users := httptest.NewServer(http.NotFoundHandler())
	defer users.Close()

	s := NewHTTPSender(HTTPSenderConfig{NotificationURL: ns.URL, UserServiceURL: users.URL})
	err := s.Send(context.Background(), testEvent(BookingCancelled, 5))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup email")
	assert.Empty(t, notify.emails)
	assert.Len(t, notify.pushes, 1)
}

func TestHTTPSender_NotificationServiceError(t *testing.T) {
	notify := &notifyServer{status: http.StatusBadGateway}
	ns := httptest.NewServer(notify)
	defer ns.Close()

	s := NewHTTPSender(HTTPSenderConfig{NotificationURL: ns.URL})
	err := s.Send(context.Background(), testEvent(BookingCreated, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send push")
}

func TestHTTPSender_Unconfigured(t *testing.T) {
	s := NewHTTPSender(HTTPSenderConfig{})
	assert.NoError(t, s.Send(context.Background(), testEvent(BookingCreated, 1)))
}
