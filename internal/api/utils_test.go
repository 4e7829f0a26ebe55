package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"name":"경복궁","age":3}`},
		{name: "empty", body: ``, wantErr: "body must not be empty"},
		{name: "syntax", body: `{"name":}`, wantErr: "badly-formed JSON"},
		{name: "wrong type", body: `{"age":"three"}`, wantErr: `incorrect JSON type for field "age"`},
		{name: "unknown field", body: `{"city":"Seoul"}`, wantErr: `unknown key "city"`},
		{name: "trailing value", body: `{"name":"a"}{"name":"b"}`, wantErr: "single JSON value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var dst sample
			err := DecodeJSONBody(w, r, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "경복궁", dst.Name)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	ErrorResponse(w, r, http.StatusBadRequest, "Messages are required")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ErrorBody{Error: "Messages are required"}, body)
}

func TestDecodeLenientJSONBody_IgnoresUnknownKeys(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"경복궁","city":"Seoul"}`))
	w := httptest.NewRecorder()

	var dst sample
	require.NoError(t, DecodeLenientJSONBody(w, r, &dst))
	assert.Equal(t, "경복궁", dst.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	assert.ErrorContains(t, DecodeLenientJSONBody(w, r, &dst), "single JSON value")
}

func TestWriteJSONResponse_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/", nil)

	WriteJSONResponse(w, r, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
