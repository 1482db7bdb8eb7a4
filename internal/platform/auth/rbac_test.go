package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		allowed  []string
		wantCode int
	}{
		{"doctor allowed", "doctor", []string{"doctor"}, http.StatusOK},
		{"one of many", "patient", []string{"doctor", "patient"}, http.StatusOK},
		{"patient denied", "patient", []string{"doctor"}, http.StatusForbidden},
		{"no role", "", []string{"doctor"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.role != "" {
				req = req.WithContext(WithIdentity(req.Context(), uuid.New(), tt.role))
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h := RequireRole(tt.allowed...)(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})
			err := h(c)

			if tt.wantCode == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError, got %v", err)
			}
			if he.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, he.Code)
			}
		})
	}
}
