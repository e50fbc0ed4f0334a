package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

func TestMissingColumnError(t *testing.T) {
	assert.Equal(t, "missing required column: duration", NewMissingColumnError("duration").Error())
	assert.Equal(t, "missing required columns: date, entity", NewMissingColumnError("date", "entity").Error())

	wrapped := fmt.Errorf("run failed: %w", NewMissingColumnError("duration"))
	assert.True(t, IsFatal(wrapped))
	assert.False(t, IsFatal(NewComputationError("x", "boom", nil)))
}

func TestComputationErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("division by zero")
	err := NewComputationError("market_balance", "reducer failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "index market_balance: reducer failed: division by zero", err.Error())
	assert.Equal(t, "index x: panic", NewComputationError("x", "panic", nil).Error())
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"shape", NewOutputShapeError("a", "matrix", "series"), domain.FailureOutputShape},
		{"timeout", &TimeoutError{IndexID: "a", Budget: time.Second}, domain.FailureTimeout},
		{"wrapped timeout", fmt.Errorf("x: %w", &TimeoutError{IndexID: "a"}), domain.FailureTimeout},
		{"computation", NewComputationError("a", "boom", nil), domain.FailureComputation},
		{"plain", fmt.Errorf("anything"), domain.FailureComputation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureKind(tt.err))
		})
	}
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleError(t *testing.T) {
	h := NewErrorHandler(nil, false)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"missing column", fmt.Errorf("run: %w", NewMissingColumnError("duration")), http.StatusUnprocessableEntity, TypeMissingColumn},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, TypePayloadTooLarge},
		{"validation", NewValidationErrors([]ValidationError{{Field: "base_start", Message: "bad"}}), http.StatusBadRequest, TypeValidation},
		{"unsupported", UnsupportedMediaType("image/png"), http.StatusUnsupportedMediaType, TypeUnsupportedMedia},
		{"unreadable", UnreadableInput(fmt.Errorf("bad csv")), http.StatusBadRequest, TypeUnreadableInput},
		{"unknown", fmt.Errorf("something broke"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/indices", nil)

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/indices", body["instance"])
		})
	}

	t.Run("missing fields extension", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleError(rec, httptest.NewRequest(http.MethodPost, "/", nil), NewMissingColumnError("duration", "distance"))
		body := decodeProblem(t, rec)
		assert.Equal(t, []any{"duration", "distance"}, body["missing_fields"])
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
		assert.Equal(t, 0, rec.Body.Len())
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewErrorHandler(nil, true)
	handler := RecoveryMiddleware(h)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("reducer exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, "reducer exploded", body["panic"])
	assert.True(t, strings.Contains(body["stack"].(string), "goroutine"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, TypeMethodNotAllowed, decodeProblem(t, rec)["type"])
}

func TestProblemDetailsJSON(t *testing.T) {
	p := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad", "", "").WithExtension("type", "ignored")
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, TypeValidation, body["type"], "standard members win over extensions")
	assert.NotContains(t, body, "detail")
}
