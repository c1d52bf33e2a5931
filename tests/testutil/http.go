package testutil

import (
	"bytes"
	"cmp"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPTestCase describes one request against a handler and the response
// it should produce. Zero-value Method and Path default to GET /.
type HTTPTestCase struct {
	Name           string
	Method         string
	Path           string
	Body           any
	Headers        map[string]string
	ExpectedStatus int
	ExpectedBody   map[string]any
	Setup          func(t *testing.T, tc *TestContext)
	Validate       func(t *testing.T, tc *TestContext)
}

// RunHTTPTestCases runs each case as a named subtest.
func RunHTTPTestCases(t *testing.T, handler gin.HandlerFunc, cases []HTTPTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			RunHTTPTestCase(t, handler, tc)
		})
	}
}

// RunHTTPTestCase drives the handler with the case's request and checks
// the recorded response against its expectations.
func RunHTTPTestCase(t *testing.T, handler gin.HandlerFunc, tc HTTPTestCase) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = buildCaseRequest(t, tc)

	run := &TestContext{Context: c, Recorder: w}
	if tc.Setup != nil {
		tc.Setup(t, run)
	}

	handler(c)

	if tc.ExpectedStatus != 0 {
		assert.Equal(t, tc.ExpectedStatus, w.Code,
			"status for %s %s", c.Request.Method, c.Request.URL.Path)
	}
	if tc.ExpectedBody != nil {
		got := JSONResponse(t, run)
		for key, want := range tc.ExpectedBody {
			assert.Equal(t, want, got[key], "response field %q", key)
		}
	}
	if tc.Validate != nil {
		tc.Validate(t, run)
	}
}

func buildCaseRequest(t *testing.T, tc HTTPTestCase) *http.Request {
	t.Helper()

	var body io.Reader
	if tc.Body != nil {
		payload, err := json.Marshal(tc.Body)
		require.NoError(t, err, "marshal request body")
		body = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(cmp.Or(tc.Method, http.MethodGet), cmp.Or(tc.Path, "/"), body)
	if tc.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range tc.Headers {
		req.Header.Set(k, v)
	}
	return req
}

// JSONResponse decodes the recorded response body as a generic JSON object.
func JSONResponse(t *testing.T, tc *TestContext) map[string]any {
	return JSONResponseAs[map[string]any](t, tc)
}

// JSONResponseAs decodes the recorded response body into T.
func JSONResponseAs[T any](t *testing.T, tc *TestContext) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(tc.ResponseBody(), &out), "decode response body")
	return out
}

// AssertSuccessResponse checks the envelope reports success with no error attached.
func AssertSuccessResponse(t *testing.T, tc *TestContext) {
	t.Helper()

	resp := JSONResponse(t, tc)
	assert.Equal(t, true, resp["success"])
	assert.Nil(t, resp["error"])
}

// AssertErrorResponse checks the envelope carries an error with the given code.
func AssertErrorResponse(t *testing.T, tc *TestContext, code string) {
	t.Helper()

	resp := JSONResponse(t, tc)
	assert.Equal(t, false, resp["success"])

	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok, "error object missing from envelope")
	assert.Equal(t, code, errObj["code"])
}
