package maintenance

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"auth-serverless/internal/observability"
)

type mockPurger struct {
	purgeFunc func(ctx context.Context, batchSize int) (int64, error)
	calls     int
}

func (m *mockPurger) PurgeExpiredDenylist(ctx context.Context, batchSize int) (int64, error) {
	m.calls++
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, batchSize)
	}
	return 0, nil
}

func TestPurgeHandler(t *testing.T) {
	tests := []struct {
		name       string
		cronSecret string
		method     string
		auth       string
		purgeErr   error
		wantStatus int
		wantCalls  int
	}{
		{name: "disabled without secret", cronSecret: "", method: http.MethodPost, auth: "Bearer x", wantStatus: http.StatusNotFound},
		{name: "wrong method", cronSecret: "cron", method: http.MethodDelete, auth: "Bearer cron", wantStatus: http.StatusMethodNotAllowed},
		{name: "missing auth", cronSecret: "cron", method: http.MethodGet, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", cronSecret: "cron", method: http.MethodGet, auth: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "purges", cronSecret: "cron", method: http.MethodPost, auth: "Bearer cron", wantStatus: http.StatusOK, wantCalls: 1},
		{name: "purge failure", cronSecret: "cron", method: http.MethodGet, auth: "bearer cron", purgeErr: errors.New("db down"), wantStatus: http.StatusInternalServerError, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			purger := &mockPurger{
				purgeFunc: func(ctx context.Context, batchSize int) (int64, error) {
					if batchSize != 250 {
						t.Errorf("batchSize = %d, want 250", batchSize)
					}
					return 7, tt.purgeErr
				},
			}
			var logs bytes.Buffer
			handler := NewPurgeHandler(purger, observability.NewLoggerTo(&logs), tt.cronSecret, 250)

			req := httptest.NewRequest(tt.method, "/internal/maintenance/purge-denylist", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()

			handler.Handle(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if purger.calls != tt.wantCalls {
				t.Errorf("purge calls = %d, want %d", purger.calls, tt.wantCalls)
			}
		})
	}
}
