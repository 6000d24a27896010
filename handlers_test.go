package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondModelErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", utils.NewNotFoundError("group"), http.StatusNotFound, "group not found"},
		{"validation", utils.NewValidationError("exceeds balance"), http.StatusBadRequest, "exceeds balance"},
		{"conflict", utils.NewConflictError("duplicate idempotency key", false), http.StatusConflict, "duplicate idempotency key"},
		{"gorm not found sentinel", utils.ErrorRecordNotFound, http.StatusNotFound, utils.ErrorRecordNotFound.Error()},
		{"unexpected", errors.New("driver: bad connection"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondModelError(c, tc.err)

			if w.Code != tc.wantStatus {
				t.Fatalf("status=%d; want %d", w.Code, tc.wantStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if body["success"] != false {
				t.Fatalf("error responses must carry success=false; got %v", body["success"])
			}
			if body["message"] != tc.wantMsg {
				t.Fatalf("message=%q; want %q", body["message"], tc.wantMsg)
			}
		})
	}
}

func TestRespondModelErrorConflictRetryableFlag(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondModelError(c, utils.NewConflictError("operation conflicted with a concurrent update, please retry", true))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["retryable"] != true {
		t.Fatalf("retryable conflicts must advertise the flag; got %v", body["retryable"])
	}
}

func TestPathIdRejectsBadValues(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "groupId", Value: raw}}

		if _, ok := pathId(c, "groupId"); ok {
			t.Fatalf("pathId(%q) must fail", raw)
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("pathId(%q): status=%d; want 400", raw, w.Code)
		}
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "groupId", Value: "17"}}
	id, ok := pathId(c, "groupId")
	if !ok || id != 17 {
		t.Fatalf("pathId(17): got (%d, %v)", id, ok)
	}
}

func TestCustomNotFoundHandler(t *testing.T) {
	r := gin.New()
	r.NoRoute(customNotFoundHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d; want 404", w.Code)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example.com , ,https://b.example.com")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("unexpected result: %v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatalf("blank input must yield nil")
	}
}
