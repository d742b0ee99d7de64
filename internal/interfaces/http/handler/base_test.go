package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/interfaces/http/dto"
	"github.com/marketplace/returns/internal/interfaces/http/middleware"
)

// ginContext builds a bare test context around a recorder
func ginContext(w *httptest.ResponseRecorder, method, path, body string) (*gin.Context, *gin.Engine) {
	c, engine := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, engine
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from context",
			setup: func(c *gin.Context) {
				c.Set("request_id", "ctx-request-id")
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set(middleware.RequestIDKey, "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Set("request_id", "ctx-id")
				c.Request.Header.Set(middleware.RequestIDKey, "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := ginContext(httptest.NewRecorder(), http.MethodGet, "/", "")
			tt.setup(c)
			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "validation",
			err:         shared.NewValidationError("INVALID_QUANTITY", "Return quantity must be positive"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_QUANTITY",
			wantMessage: "Return quantity must be positive",
		},
		{
			name:        "invalid transition",
			err:         shared.NewInvalidTransitionError("Cannot approve return RET-1 in approved status"),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    shared.CodeInvalidTransition,
			wantMessage: "Cannot approve return RET-1 in approved status",
		},
		{
			name:        "not found",
			err:         shared.NewNotFoundError("Return order"),
			wantStatus:  http.StatusNotFound,
			wantCode:    shared.CodeNotFound,
			wantMessage: "Return order not found",
		},
		{
			name:        "wrapped domain error",
			err:         fmt.Errorf("load: %w", shared.NewNotFoundError("Order item")),
			wantStatus:  http.StatusNotFound,
			wantCode:    shared.CodeNotFound,
			wantMessage: "Order item not found",
		},
		{
			name:        "forbidden",
			err:         shared.ErrForbidden,
			wantStatus:  http.StatusForbidden,
			wantCode:    shared.CodeForbidden,
			wantMessage: shared.ErrForbidden.Message,
		},
		{
			name:        "persistence hides the cause",
			err:         shared.NewPersistenceError("update return", errors.New("pq: connection reset")),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    shared.CodePersistence,
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "courier",
			err:         shared.NewCourierError("Courier rejected pickup", nil),
			wantStatus:  http.StatusBadGateway,
			wantCode:    shared.CodeCourier,
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "plain error",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    dto.ErrCodeInternal,
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := ginContext(w, http.MethodGet, "/", "")
			c.Set("request_id", "req-7")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMessage, resp.Error.Message)
			assert.Equal(t, "req-7", resp.Error.RequestID)
			assert.Len(t, c.Errors, 1)
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := ginContext(w, http.MethodGet, "/", "")

	(&BaseHandler{}).HandleError(c, nil)

	assert.Empty(t, w.Body.String())
}

func TestCaller(t *testing.T) {
	t.Run("missing identity", func(t *testing.T) {
		c, _ := ginContext(httptest.NewRecorder(), http.MethodGet, "/", "")

		_, _, err := caller(c)
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})

	t.Run("resolved identity", func(t *testing.T) {
		vendorID := uuid.New()
		c, _ := ginContext(httptest.NewRecorder(), http.MethodGet, "/", "")
		c.Set(middleware.VendorIDKey, vendorID)
		c.Set(middleware.ActorKey, tracking.Actor{Type: tracking.ActorVendor, ID: "u-1"})

		gotVendor, actor, err := caller(c)
		require.NoError(t, err)
		assert.Equal(t, vendorID, gotVendor)
		assert.Equal(t, "u-1", actor.ID)
	})
}

func TestPathID(t *testing.T) {
	id := uuid.New()
	c, _ := ginContext(httptest.NewRecorder(), http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	got, err := pathID(c)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	c.Params = gin.Params{{Key: "id", Value: "42"}}
	_, err = pathID(c)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}
