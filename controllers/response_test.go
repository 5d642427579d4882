package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"skillswap_server/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", models.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", models.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("x: %w", models.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("x: %w: %w", models.ErrStoreUnavailable, errors.New("timeout")), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRequireActor(t *testing.T) {
	var got models.Actor
	handler := RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set(HeaderMemberID, "admin")
	req.Header.Set(HeaderMemberRole, "Reviewer")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Actor{ID: "admin", Role: models.RoleReviewer}, got)

	req = httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set(HeaderMemberID, "alice")
	req.Header.Set(HeaderMemberRole, "superuser")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, models.RoleMember, got.Role)
}
