package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ctxloom/ctxloom/internal/pkg/errcode"
)

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) (int, map[string]interface{}) {
	t.Helper()
	var envelope struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Code, envelope.Data
}

func TestIngestAndAssembleEndToEnd(t *testing.T) {
	router := setupRouter(t)
	projectID := uuid.NewString()
	marker := strings.ReplaceAll(uuid.NewString(), "-", "")

	var doc strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&doc, "The %s scheduler runs pass number %d every night.\n", marker, i)
	}
	resp := postJSON(t, router, "/api/v1/ingest", map[string]interface{}{
		"project_id": projectID,
		"path":       "sched.go",
		"content":    doc.String(),
	})
	require.Equal(t, http.StatusOK, resp.Code)
	code, data := decodeEnvelope(t, resp)
	require.Zero(t, code)
	require.NotEmpty(t, data["chunks"])

	resp = postJSON(t, router, "/api/v1/context/assemble", map[string]interface{}{
		"project_id": projectID,
		"prompt":     "when does the scheduler run",
		"budget":     4096,
		"hot_paths":  []string{"sched.go"},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	code, data = decodeEnvelope(t, resp)
	require.Zero(t, code)
	text, _ := data["assembled_text"].(string)
	require.Contains(t, text, marker)
	require.Contains(t, text, "=== USER INSTRUCTION ===")

	sessionsReq := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+projectID+"/sessions?limit=5", nil)
	sessionsResp := httptest.NewRecorder()
	router.ServeHTTP(sessionsResp, sessionsReq)
	require.Equal(t, http.StatusOK, sessionsResp.Code)
	code, data = decodeEnvelope(t, sessionsResp)
	require.Zero(t, code)
	sessions, _ := data["sessions"].([]interface{})
	require.Len(t, sessions, 1)
}

func TestAssembleRejectsInvalidRequest(t *testing.T) {
	router := setupRouter(t)

	resp := postJSON(t, router, "/api/v1/context/assemble", map[string]interface{}{
		"project_id": "",
		"prompt":     "q",
		"budget":     100,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	code, _ := decodeEnvelope(t, resp)
	require.Equal(t, errcode.ErrInvalid, code)

	resp = postJSON(t, router, "/api/v1/context/assemble", map[string]interface{}{
		"project_id": uuid.NewString(),
		"prompt":     "q",
		"budget":     0,
	})
	code, _ = decodeEnvelope(t, resp)
	require.Equal(t, errcode.ErrInvalid, code)
}

func TestPurgeProjectEndpoint(t *testing.T) {
	router := setupRouter(t)
	projectID := uuid.NewString()

	resp := postJSON(t, router, "/api/v1/ingest", map[string]interface{}{
		"project_id": projectID,
		"path":       "a.go",
		"content":    "package main\n\nfunc main() {}\n// " + uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/projects/"+projectID, nil)
	delResp := httptest.NewRecorder()
	router.ServeHTTP(delResp, delReq)
	require.Equal(t, http.StatusOK, delResp.Code)
	code, _ := decodeEnvelope(t, delResp)
	require.Zero(t, code)
}

func TestIngestBase64Content(t *testing.T) {
	router := setupRouter(t)
	projectID := uuid.NewString()

	resp := postJSON(t, router, "/api/v1/ingest", map[string]interface{}{
		"project_id":     projectID,
		"path":           "enc.txt",
		"content_base64": "bm90IHJlYWxseSBzZWNyZXQgY29udGVudA==",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	code, _ := decodeEnvelope(t, resp)
	require.Zero(t, code)

	resp = postJSON(t, router, "/api/v1/ingest", map[string]interface{}{
		"project_id":     projectID,
		"path":           "bad.txt",
		"content_base64": "%%%not-base64%%%",
	})
	code, _ = decodeEnvelope(t, resp)
	require.Equal(t, errcode.ErrInvalid, code)
}
