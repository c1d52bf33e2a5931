package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func responseContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	t.Run("context value wins over header", func(t *testing.T) {
		c, _ := responseContext(t)
		c.Set(RequestIDKey, "ctx-id")
		c.Request.Header.Set(RequestIDKey, "header-id")
		assert.Equal(t, "ctx-id", getRequestID(c))
	})

	t.Run("header is the fallback", func(t *testing.T) {
		c, _ := responseContext(t)
		c.Request.Header.Set(RequestIDKey, "header-id")
		assert.Equal(t, "header-id", getRequestID(c))
	})

	t.Run("empty when neither is set", func(t *testing.T) {
		c, _ := responseContext(t)
		assert.Empty(t, getRequestID(c))
	})
}

func TestBaseHandlerSuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("Success wraps data in the envelope", func(t *testing.T) {
		c, w := responseContext(t)
		h.Success(c, map[string]string{"job_code": "JOB-20260901-0001"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeEnvelope(t, w).Success)
	})

	t.Run("SuccessWithMeta carries pagination", func(t *testing.T) {
		c, w := responseContext(t)
		h.SuccessWithMeta(c, []string{"A-01", "A-02"}, 100, 1, 10)
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeEnvelope(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(100), resp.Meta.Total)
	})

	t.Run("Created returns 201", func(t *testing.T) {
		c, w := responseContext(t)
		h.Created(c, map[string]string{"id": "123"})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, decodeEnvelope(t, w).Success)
	})

	t.Run("NoContent returns an empty 204", func(t *testing.T) {
		router := gin.New()
		router.DELETE("/jobs/:code", func(c *gin.Context) { h.NoContent(c) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("DELETE", "/jobs/JOB-20260901-0001", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.Bytes())
	})
}

func TestBaseHandlerErrorResponses(t *testing.T) {
	h := &BaseHandler{}

	cases := []struct {
		name       string
		send       func(*gin.Context)
		wantStatus int
		wantCode   string
	}{
		{"BadRequest", func(c *gin.Context) { h.BadRequest(c, "bad line quantity") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"NotFound", func(c *gin.Context) { h.NotFound(c, "job not found") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"Conflict", func(c *gin.Context) { h.Conflict(c, "location occupied") }, http.StatusConflict, dto.ErrCodeConflict},
		{"InternalError", func(c *gin.Context) { h.InternalError(c, "posting failed") }, http.StatusInternalServerError, dto.ErrCodeInternal},
		{"TooManyRequests", func(c *gin.Context) { h.TooManyRequests(c, "slow down") }, http.StatusTooManyRequests, dto.ErrCodeRateLimited},
		{"UnprocessableEntity", func(c *gin.Context) { h.UnprocessableEntity(c, dto.ErrCodeBusinessRule, "rule violated") }, http.StatusUnprocessableEntity, dto.ErrCodeBusinessRule},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := responseContext(t)
			tc.send(c)

			assert.Equal(t, tc.wantStatus, w.Code)
			resp := decodeEnvelope(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}

	t.Run("request ID is echoed in the envelope", func(t *testing.T) {
		c, w := responseContext(t)
		c.Set(RequestIDKey, "gw-123")
		h.BadRequest(c, "bad line quantity")
		assert.Equal(t, "gw-123", decodeEnvelope(t, w).Error.RequestID)
	})

	t.Run("ErrorWithCode derives the status from the code", func(t *testing.T) {
		c, w := responseContext(t)
		h.ErrorWithCode(c, dto.ErrCodeInsufficientStock, "not enough of SKU-001")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInsufficientStock, decodeEnvelope(t, w).Error.Code)
	})
}

func TestBaseHandlerValidationError(t *testing.T) {
	h := &BaseHandler{}
	c, w := responseContext(t)
	c.Set(RequestIDKey, "gw-456")

	h.ValidationError(c, []dto.ValidationDetail{
		{Field: "item_code", Message: "Required"},
		{Field: "quantity", Message: "Must be numeric"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "gw-456", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
}

func TestBaseHandlerHandleDomainError(t *testing.T) {
	h := &BaseHandler{}

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{shared.ErrAlreadyExists, http.StatusConflict, dto.ErrCodeAlreadyExists},
		{shared.ErrInvalidInput, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{shared.ErrInvalidTransition, http.StatusUnprocessableEntity, dto.ErrCodeInvalidTransition},
		{shared.ErrCapacityConflict, http.StatusConflict, dto.ErrCodeCapacityConflict},
		{shared.ErrAnchoringViolation, http.StatusConflict, dto.ErrCodeAnchoringViolation},
		{shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{shared.ErrInsufficientStock, http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock},
		{shared.ErrAllocationFailed, http.StatusUnprocessableEntity, dto.ErrCodeAllocationFailed},
		{shared.ErrReconciliationFailed, http.StatusConflict, dto.ErrCodeReconciliation},
	}

	for _, tc := range cases {
		t.Run(tc.wantCode, func(t *testing.T) {
			c, w := responseContext(t)
			h.HandleDomainError(c, tc.err)

			assert.Equal(t, tc.wantStatus, w.Code)
			resp := decodeEnvelope(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}

	t.Run("request ID is carried through", func(t *testing.T) {
		c, w := responseContext(t)
		c.Set(RequestIDKey, "gw-789")
		h.HandleDomainError(c, shared.ErrNotFound)
		assert.Equal(t, "gw-789", decodeEnvelope(t, w).Error.RequestID)
	})

	t.Run("unknown errors become an opaque 500", func(t *testing.T) {
		c, w := responseContext(t)
		h.HandleDomainError(c, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeEnvelope(t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
	})
}

func TestBaseHandlerHandleError(t *testing.T) {
	h := &BaseHandler{}

	t.Run("nil error writes nothing", func(t *testing.T) {
		c, w := responseContext(t)
		h.HandleError(c, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.Bytes())
	})

	t.Run("wrapped domain errors are unwrapped", func(t *testing.T) {
		c, w := responseContext(t)
		h.HandleError(c, fmt.Errorf("loading job: %w", shared.ErrNotFound))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeEnvelope(t, w).Error.Code)
	})

	t.Run("plain errors fall back to 500", func(t *testing.T) {
		c, w := responseContext(t)
		h.HandleError(c, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
