package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type stubValidator struct {
	accountID uuid.UUID
	err       error
}

func (s *stubValidator) ValidateToken(_ context.Context, _ string) (uuid.UUID, error) {
	return s.accountID, s.err
}

func TestAuth(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name       string
		header     string
		validator  *stubValidator
		wantStatus int
		wantID     uuid.UUID
	}{
		{
			name:       "valid token",
			header:     "Bearer good-token",
			validator:  &stubValidator{accountID: accountID},
			wantStatus: http.StatusOK,
			wantID:     accountID,
		},
		{
			name:       "missing header",
			header:     "",
			validator:  &stubValidator{accountID: accountID},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not bearer",
			header:     "Basic dXNlcjpwYXNz",
			validator:  &stubValidator{accountID: accountID},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			header:     "Bearer bad-token",
			validator:  &stubValidator{err: errors.New("token expired")},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "validator returns nil id",
			header:     "Bearer odd-token",
			validator:  &stubValidator{},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotID uuid.UUID
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID = AccountIDFromCtx(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			Auth(tc.validator)(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && gotID != tc.wantID {
				t.Errorf("account id: got %s, want %s", gotID, tc.wantID)
			}
		})
	}
}

func TestAccountIDFromCtx_Missing(t *testing.T) {
	if id := AccountIDFromCtx(context.Background()); id != uuid.Nil {
		t.Errorf("expected uuid.Nil for bare context, got %s", id)
	}
}

func TestWithAccountID_RoundTrip(t *testing.T) {
	want := uuid.New()
	ctx := WithAccountID(context.Background(), want)
	if got := AccountIDFromCtx(ctx); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
