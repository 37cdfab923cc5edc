package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collector/internal/middleware"
	"collector/internal/model"
	"collector/internal/service"
	"collector/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// stubBatches records the last decision and returns err when set.
type stubBatches struct {
	err error

	userID  string
	slotID  string
	outcome model.SlotStatus
	comment string
	mode    service.ApprovalMode
}

func (s *stubBatches) CreateBatch(ctx context.Context, userID string, req service.CreateBatchRequest) (service.BatchResponse, error) {
	return service.BatchResponse{Name: req.Name}, s.err
}

func (s *stubBatches) Decide(ctx context.Context, userID, slotID string, outcome model.SlotStatus, comment string) (service.DecisionResult, error) {
	s.userID, s.slotID, s.outcome, s.comment = userID, slotID, outcome, comment
	if s.err != nil {
		return service.DecisionResult{}, s.err
	}
	return service.DecisionResult{SlotID: slotID, Status: string(outcome)}, nil
}

func (s *stubBatches) ListActionableBatches(ctx context.Context, userID string, mode service.ApprovalMode, page, limit int) ([]service.BatchResponse, int64, error) {
	s.userID, s.mode = userID, mode
	return []service.BatchResponse{}, 0, s.err
}

func (s *stubBatches) ListOwnBatches(ctx context.Context, userID string, page, limit int) ([]service.BatchResponse, int64, error) {
	return nil, 0, s.err
}

func (s *stubBatches) GetBatch(ctx context.Context, userID, id string) (service.BatchResponse, error) {
	return service.BatchResponse{ID: id}, s.err
}

func (s *stubBatches) ListComments(ctx context.Context, userID, id string) ([]service.BatchCommentResponse, error) {
	return nil, s.err
}

var testSecret = []byte("test-secret")

func newApprovalRouter(batches service.BatchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewApprovalHandler(batches, middleware.NewAuth(testSecret)).RegisterRoutes(&r.RouterGroup)
	return r
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := middleware.NewAuth(testSecret).IssueToken(userID, role, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return "Bearer " + token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var res response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid response body %q: %v", w.Body.String(), err)
	}
	return res
}

func TestApprovalRoutesRequireToken(t *testing.T) {
	r := newApprovalRouter(&stubBatches{})

	req := httptest.NewRequest(http.MethodGet, "/api/approvals", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if res := decode(t, w); res.Status != "error" {
		t.Errorf("expected error envelope, got %+v", res)
	}
}

func TestApprovePassesCallerAndComment(t *testing.T) {
	stub := &stubBatches{}
	r := newApprovalRouter(stub)
	user := uuid.NewString()

	req := httptest.NewRequest(http.MethodPut, "/api/approvals/slot-1/approve", strings.NewReader(`{"comment":"looks right"}`))
	req.Header.Set("Authorization", bearer(t, user, model.RoleApprover))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if stub.userID != user || stub.slotID != "slot-1" || stub.outcome != model.SlotApproved || stub.comment != "looks right" {
		t.Errorf("unexpected decision %+v", stub)
	}
}

func TestRejectWithoutBody(t *testing.T) {
	stub := &stubBatches{}
	r := newApprovalRouter(stub)

	req := httptest.NewRequest(http.MethodPut, "/api/approvals/slot-2/reject", nil)
	req.Header.Set("Authorization", bearer(t, uuid.NewString(), model.RoleApprover))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if stub.outcome != model.SlotRejected || stub.comment != "" {
		t.Errorf("unexpected decision %+v", stub)
	}
}

func TestDecisionRejectsMalformedBody(t *testing.T) {
	stub := &stubBatches{}
	r := newApprovalRouter(stub)

	req := httptest.NewRequest(http.MethodPut, "/api/approvals/slot-3/approve", strings.NewReader(`{"comment":`))
	req.Header.Set("Authorization", bearer(t, uuid.NewString(), model.RoleApprover))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if stub.slotID != "" {
		t.Errorf("no decision should be taken, got slot %q", stub.slotID)
	}
}

func TestListApprovalsDefaultsToPending(t *testing.T) {
	stub := &stubBatches{}
	r := newApprovalRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/approvals", nil)
	req.Header.Set("Authorization", bearer(t, uuid.NewString(), model.RoleApprover))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if stub.mode != service.ModePending {
		t.Errorf("expected pending mode, got %q", stub.mode)
	}
}

func TestDecisionErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &service.Error{Kind: service.KindValidation, Message: "bad id"}, http.StatusBadRequest},
		{"permission", &service.Error{Kind: service.KindPermission, Message: "not yours"}, http.StatusForbidden},
		{"state", &service.Error{Kind: service.KindState, Message: "finalized"}, http.StatusConflict},
		{"not found", &service.Error{Kind: service.KindNotFound, Message: "missing"}, http.StatusNotFound},
		{"dependency", &service.Error{Kind: service.KindDependency, Message: "db down"}, http.StatusBadGateway},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newApprovalRouter(&stubBatches{err: tt.err})

			req := httptest.NewRequest(http.MethodPut, "/api/approvals/slot/approve", nil)
			req.Header.Set("Authorization", bearer(t, uuid.NewString(), model.RoleApprover))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if res := decode(t, w); res.StatusCode != tt.want || res.Error == "" {
				t.Errorf("unexpected envelope %+v", res)
			}
		})
	}
}
