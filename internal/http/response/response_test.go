package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()

	JSON(rec, req, http.StatusCreated, map[string]int{"id": 7})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
		Meta    struct {
			RequestID string `json:"request_id"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success {
		t.Error("success must be true")
	}
	if body.Data["id"] != 7 {
		t.Errorf("data = %v", body.Data)
	}
	if body.Meta.RequestID == "" {
		t.Error("meta.request_id must always be populated")
	}
}

func TestErrorEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, http.StatusConflict, "CONFLICT", "order was modified concurrently", nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success {
		t.Error("success must be false")
	}
	if body.Error.Code != "CONFLICT" {
		t.Errorf("code = %q", body.Error.Code)
	}
	if body.Error.Message == "" {
		t.Error("message must be set")
	}
}

func TestErrorNegotiatesProblemJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/3", nil)
	req.Header.Set("Accept", "application/problem+json")
	rec := httptest.NewRecorder()

	Error(rec, req, http.StatusUnprocessableEntity, "INVALID_TRANSITION", "booked -> draft", nil)

	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type = %q", ct)
	}
	var problem struct {
		Type     string `json:"type"`
		Title    string `json:"title"`
		Status   int    `json:"status"`
		Detail   string `json:"detail"`
		Instance string `json:"instance"`
		Code     string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if problem.Type != "urn:problem:transport-pricing:invalid-transition" {
		t.Errorf("type = %q", problem.Type)
	}
	if problem.Title != "Invalid Order Transition" {
		t.Errorf("title = %q", problem.Title)
	}
	if problem.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", problem.Status)
	}
	if problem.Instance != "/api/v1/orders/3" {
		t.Errorf("instance = %q", problem.Instance)
	}
}

func TestErrorIgnoresZeroQualityProblemJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/problem+json;q=0, application/json")
	rec := httptest.NewRecorder()

	Error(rec, req, http.StatusNotFound, "NOT_FOUND", "gone", nil)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want plain envelope", ct)
	}
}

func TestPrefersProblemJSONQualityValues(t *testing.T) {
	cases := []struct {
		accept string
		want   bool
	}{
		{"application/problem+json", true},
		{"application/json, application/problem+json;q=0.9", true},
		{"application/problem+json;q=0.5", true},
		{"application/problem+json; q=1", true},
		{"APPLICATION/PROBLEM+JSON", true},
		{"application/problem+json;q=0", false},
		{"application/problem+json;q=0.0", false},
		{"application/problem+json;q=0, application/json", false},
		{"application/json", false},
		{"*/*", false},
		{"", false},
		{";;;,,q=,", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", tc.accept)
		if got := prefersProblemJSON(req); got != tc.want {
			t.Errorf("prefersProblemJSON(%q) = %v, want %v", tc.accept, got, tc.want)
		}
	}
}

func TestErrorHonorsFractionalQuality(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/1", nil)
	req.Header.Set("Accept", "application/problem+json;q=0.9")
	rec := httptest.NewRecorder()

	Error(rec, req, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type = %q, want problem+json for a positive quality", ct)
	}
}

func FuzzPrefersProblemJSON(f *testing.F) {
	f.Add("application/problem+json")
	f.Add("application/json, application/problem+json;q=0.9")
	f.Add("application/problem+json;q=0")
	f.Add("*/*")
	f.Add("")
	f.Add(";;;,,q=,")
	f.Fuzz(func(t *testing.T, accept string) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", accept)
		// Must never panic and must be stable for the same header.
		first := prefersProblemJSON(req)
		if second := prefersProblemJSON(req); first != second {
			t.Fatalf("negotiation not deterministic for %q", accept)
		}
		// problem+json can only be chosen when the header names it.
		if first && !strings.Contains(strings.ToLower(accept), "application/problem+json") {
			t.Fatalf("negotiated problem+json for %q which never offers it", accept)
		}
	})
}
