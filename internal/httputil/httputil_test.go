package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectral.report/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad limit") }, http.StatusBadRequest, "bad limit"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no run") }, http.StatusNotFound, "no run"},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "outside root") }, http.StatusForbidden, "outside root"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "boom") }, http.StatusInternalServerError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}

func TestWriteJSONOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]int{"runs": 3})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":3}`, rec.Body.String())
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]any{"f": func() {}})
	assert.Equal(t, http.StatusOK, rec.Code, "status is committed before encoding")
}

func TestHandlerClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, map[string]string{"q": r.URL.Query().Get("q")})
	})
	client := HandlerClient{Handler: mux}

	req, err := http.NewRequest(http.MethodGet, "http://spectral.local/ping?q=ndvi", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Same(t, req, resp.Request)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q":"ndvi"}`, string(body))
}

func TestMockHTTPClient(t *testing.T) {
	transport := errors.New("connection refused")
	m := NewMockHTTPClient().
		AddResponse(http.StatusNotFound, `{"error":"missing"}`).
		AddErrorResponse(transport)

	req, _ := http.NewRequest(http.MethodGet, "http://x/api/runs/1", nil)
	resp, err := m.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"error":"missing"}`, string(body))

	_, err = m.Do(req)
	assert.ErrorIs(t, err, transport)

	resp, err = m.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "empty queue falls back to 200")
	assert.Equal(t, 3, m.RequestCount())
}

func TestNewStandardClient(t *testing.T) {
	assert.Same(t, http.DefaultClient, NewStandardClient(nil))
	c := &http.Client{}
	assert.Same(t, c, NewStandardClient(c))
}
