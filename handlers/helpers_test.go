package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/esports-results/repositories"
	"github.com/Dosada05/esports-results/services"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"submission not found", services.ErrSubmissionNotFound, http.StatusNotFound},
		{"dispute not found", services.ErrDisputeNotFound, http.StatusNotFound},
		{"match not found", services.ErrMatchNotFound, http.StatusNotFound},
		{"invalid state", services.ErrInvalidSubmissionState, http.StatusConflict},
		{"already resolved", services.ErrDisputeAlreadyResolved, http.StatusConflict},
		{"duplicate submission", services.ErrSubmissionAlreadyExists, http.StatusConflict},
		{"duplicate dispute", services.ErrDisputeAlreadyOpen, http.StatusConflict},
		{"self response", services.ErrSelfResponseForbidden, http.StatusForbidden},
		{"bad decision", services.ErrInvalidOpponentDecision, http.StatusBadRequest},
		{"missing reason", services.ErrDisputeReasonRequired, http.StatusBadRequest},
		{"missing payload", services.ErrResolutionPayloadRequired, http.StatusBadRequest},
		{"bad resolution type", services.ErrInvalidResolutionType, http.StatusBadRequest},
		{"verification failed", &services.VerificationFailedError{SubmissionID: 1, Errors: []string{"boom"}}, http.StatusUnprocessableEntity},
		{"no scoring rule", repositories.ErrScoringRuleNotFound, http.StatusUnprocessableEntity},
		{"unknown error", errors.New("kaboom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			mapServiceErrorToHTTP(w, r, tc.err)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		})
	}

	t.Run("wrapped errors map the same way", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		mapServiceErrorToHTTP(w, r, fmt.Errorf("match 10: %w", services.ErrSubmissionAlreadyExists))
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func requestWithURLParam(param, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(param, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGetIDFromURL(t *testing.T) {
	id, err := getIDFromURL(requestWithURLParam("matchID", "42"), "matchID")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, raw := range []string{"", "abc", "0", "-3", "1.5"} {
		_, err := getIDFromURL(requestWithURLParam("matchID", raw), "matchID")
		assert.Error(t, err, "value %q", raw)
	}
}

func TestReadJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
		require.NoError(t, readJSON(w, r, &dst))
		assert.Equal(t, "ok", dst.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
		err := readJSON(w, r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown key")
	})

	t.Run("empty body", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		err := readJSON(w, r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be empty")
	})

	t.Run("trailing garbage", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
		err := readJSON(w, r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "single JSON value")
	})
}
