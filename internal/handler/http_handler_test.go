package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/djrq/queue-service/internal/service"
	"github.com/djrq/queue-service/internal/store"
)

const testLicense = "DJRQ-AAAA-BBBB-CCCC"

func newTestRouter() (*gin.Engine, *store.MemoryStore) {
	gin.SetMode(gin.TestMode)

	ms := store.NewMemoryStore()
	registry := service.NewRegistryService(ms, service.RegistryConfig{})
	queues := service.NewQueueService(ms, registry)

	router := gin.New()
	NewHTTPHandler(queues, registry).RegisterRoutes(router)
	return router, ms
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, license string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if license != "" {
		req.Header.Set(LicenseHeaderKey, license)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return envelope.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return envelope.Error.Code
}

func TestLicenseMiddleware(t *testing.T) {
	router, _ := newTestRouter()

	tests := []struct {
		name     string
		license  string
		wantCode int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed key", "DJRQ-XX", http.StatusUnauthorized},
		{"valid key", testLicense, http.StatusOK},
		{"lowercase key", "djrq-aaaa-bbbb-cccc", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "GET", "/api/v1/dj/queues/requests", nil, tt.license)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d. Body: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

// Full viewer flow: the DJ registers a handle, a viewer resolves it and
// submits a request, the DJ sees the entry in the active queue.
func TestViewerSubmissionFlow(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "POST", "/api/v1/dj/handle", map[string]string{
		"handle":       "TestDJ123",
		"display_name": "DJ Test",
	}, testLicense)
	if w.Code != http.StatusOK {
		t.Fatalf("register handle: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/v1/handles/testdj123", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("resolve handle: %d %s", w.Code, w.Body.String())
	}
	resolved := decodeData(t, w)
	if resolved["display_name"] != "DJ Test" {
		t.Errorf("resolved = %v", resolved)
	}
	if resolved["tenant_key"] != "DJRQAAAABBBBCCCC" {
		t.Errorf("tenant key = %v", resolved["tenant_key"])
	}

	w = doJSON(t, router, "POST", "/api/v1/viewer/requests", map[string]string{
		"handle":   "testdj123",
		"username": "viewer1",
		"track":    "first song",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	submission := decodeData(t, w)
	if submission["queue_position"] != float64(1) {
		t.Errorf("first submission position = %v, want 1", submission["queue_position"])
	}
	if submission["dj_display_name"] != "DJ Test" {
		t.Errorf("submission = %v", submission)
	}

	w = doJSON(t, router, "GET", "/api/v1/dj/queues/requests", nil, testLicense)
	if w.Code != http.StatusOK {
		t.Fatalf("list queue: %d %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	requests := data["requests"].([]interface{})
	if len(requests) != 1 {
		t.Fatalf("queue has %d entries, want 1", len(requests))
	}
	entry := requests[0].(map[string]interface{})
	if entry["request"] != "first song" || entry["username"] != "viewer1" {
		t.Errorf("entry = %v", entry)
	}
	if entry["platform"] != "mobile" {
		t.Errorf("platform = %v, want mobile", entry["platform"])
	}
}

func TestSubmitToUnknownHandle(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "POST", "/api/v1/viewer/requests", map[string]string{
		"handle": "nobody",
		"track":  "song",
	}, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404. Body: %s", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "DJ_NOT_FOUND" {
		t.Errorf("error code = %q", code)
	}
}

func TestRegisterInvalidHandleStatus(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "POST", "/api/v1/dj/handle", map[string]string{
		"handle": "x!",
	}, testLicense)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422. Body: %s", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "INVALID_HANDLE" {
		t.Errorf("error code = %q", code)
	}
}

func TestHandleAvailability(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "GET", "/api/v1/handles/freename/availability", nil, "")
	if data := decodeData(t, w); data["available"] != true {
		t.Errorf("unclaimed handle: %v", data)
	}

	doJSON(t, router, "POST", "/api/v1/dj/handle", map[string]string{"handle": "freename"}, testLicense)

	w = doJSON(t, router, "GET", "/api/v1/handles/freename/availability", nil, "")
	if data := decodeData(t, w); data["available"] != false {
		t.Errorf("claimed handle: %v", data)
	}
}

func TestQueueCRUD(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "POST", "/api/v1/dj/queues/requests", map[string]string{
		"track": "manual entry",
		"notes": "slow version",
	}, testLicense)
	if w.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", w.Code, w.Body.String())
	}
	id := int64(decodeData(t, w)["id"].(float64))

	w = doJSON(t, router, "PATCH", fmt.Sprintf("/api/v1/dj/queues/requests/%d/status", id), map[string]bool{
		"played": true,
	}, testLicense)
	if w.Code != http.StatusOK {
		t.Fatalf("status update: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/v1/dj/queues/requests", nil, testLicense)
	data := decodeData(t, w)
	counts := data["counts"].(map[string]interface{})
	if counts["played"] != float64(1) || counts["total"] != float64(1) {
		t.Errorf("counts = %v", counts)
	}

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/v1/dj/queues/requests/%d", id), nil, testLicense)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/v1/dj/queues/requests", nil, testLicense)
	data = decodeData(t, w)
	if total := data["counts"].(map[string]interface{})["total"]; total != float64(0) {
		t.Errorf("total after delete = %v", total)
	}
}

func TestTransferEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "POST", "/api/v1/dj/queues/requests", map[string]string{
		"track": "save for later",
	}, testLicense)
	id := int64(decodeData(t, w)["id"].(float64))

	w = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/dj/queues/requests/%d/transfer", id), nil, testLicense)
	if w.Code != http.StatusOK {
		t.Fatalf("transfer: %d %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["from"] != "requests" || data["to"] != "nextStream" {
		t.Errorf("transfer direction = %v", data)
	}

	// Entry left the active queue and kept its id in the staged queue.
	w = doJSON(t, router, "GET", "/api/v1/dj/queues/requests", nil, testLicense)
	if total := decodeData(t, w)["counts"].(map[string]interface{})["total"]; total != float64(0) {
		t.Errorf("active queue total = %v after transfer", total)
	}
	w = doJSON(t, router, "GET", "/api/v1/dj/queues/nextStream", nil, testLicense)
	staged := decodeData(t, w)["requests"].([]interface{})
	if len(staged) != 1 || int64(staged[0].(map[string]interface{})["id"].(float64)) != id {
		t.Errorf("staged queue = %v", staged)
	}
}

func TestTransferMissingEntryStatus(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "POST", "/api/v1/dj/queues/requests/99999/transfer", nil, testLicense)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404. Body: %s", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "REQUEST_NOT_FOUND" {
		t.Errorf("error code = %q", code)
	}
}

func TestUnknownQueueRejected(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "GET", "/api/v1/dj/queues/playlist", nil, testLicense)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, "GET", "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
