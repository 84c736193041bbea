package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/api/middleware"
	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

type stubNotificationService struct {
	listParams notifications.ListParams
	listResult *notifications.ListResult
	listErr    error

	readUserID         uuid.UUID
	readNotificationID uuid.UUID
	readErr            error

	allReadCount int64
}

func (s *stubNotificationService) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.listParams = params
	if s.listErr != nil {
		return nil, s.listErr
	}
	if s.listResult != nil {
		return s.listResult, nil
	}
	return &notifications.ListResult{}, nil
}

func (s *stubNotificationService) MarkRead(_ context.Context, userID, notificationID uuid.UUID) error {
	s.readUserID = userID
	s.readNotificationID = notificationID
	return s.readErr
}

func (s *stubNotificationService) MarkAllRead(_ context.Context, _ uuid.UUID) (int64, error) {
	return s.allReadCount, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func authedRequest(method, target string, body io.Reader, userID uuid.UUID) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := middleware.WithUserID(r.Context(), userID.String())
	return r.WithContext(ctx)
}

func TestListNotificationsForwardsQueryParams(t *testing.T) {
	svc := &stubNotificationService{}
	userID := uuid.New()

	r := authedRequest(http.MethodGet, "/api/v1/notifications?limit=5&cursor=abc&unread_only=true", nil, userID)
	w := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if svc.listParams.UserID != userID {
		t.Fatalf("UserID = %s, want %s", svc.listParams.UserID, userID)
	}
	if svc.listParams.Limit != 5 {
		t.Fatalf("Limit = %d, want 5", svc.listParams.Limit)
	}
	if svc.listParams.Cursor != "abc" {
		t.Fatalf("Cursor = %q, want abc", svc.listParams.Cursor)
	}
	if !svc.listParams.UnreadOnly {
		t.Fatal("UnreadOnly not forwarded")
	}
}

func TestListNotificationsRequiresAuth(t *testing.T) {
	svc := &stubNotificationService{}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	w := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	svc := &stubNotificationService{}

	r := authedRequest(http.MethodGet, "/api/v1/notifications?limit=zero", nil, uuid.New())
	w := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestMarkNotificationReadScopesToCaller(t *testing.T) {
	svc := &stubNotificationService{}
	userID := uuid.New()
	notificationID := uuid.New()

	router := chi.NewRouter()
	router.Post("/api/v1/notifications/{notificationID}/read", MarkNotificationRead(svc, testLogger()))

	r := authedRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", nil, userID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if svc.readUserID != userID {
		t.Fatalf("userID = %s, want %s", svc.readUserID, userID)
	}
	if svc.readNotificationID != notificationID {
		t.Fatalf("notificationID = %s, want %s", svc.readNotificationID, notificationID)
	}
}

func TestMarkNotificationReadForeignRowStays404(t *testing.T) {
	svc := &stubNotificationService{
		readErr: pkgerrors.New(pkgerrors.CodeNotFound, "notification not found"),
	}

	router := chi.NewRouter()
	router.Post("/api/v1/notifications/{notificationID}/read", MarkNotificationRead(svc, testLogger()))

	r := authedRequest(http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", nil, uuid.New())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestMarkAllNotificationsReadReportsCount(t *testing.T) {
	svc := &stubNotificationService{allReadCount: 7}

	r := authedRequest(http.MethodPost, "/api/v1/notifications/read-all", nil, uuid.New())
	w := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var envelope struct {
		Data struct {
			Updated int64 `json:"updated"`
		} `json:"data"`
	}
	if err := json.NewDecoder(strings.NewReader(w.Body.String())).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.Updated != 7 {
		t.Fatalf("updated = %d, want 7", envelope.Data.Updated)
	}
}
