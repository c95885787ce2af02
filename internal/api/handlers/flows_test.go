package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/watchtowerhq/watchtower/internal/api/handlers"
	"github.com/watchtowerhq/watchtower/internal/api/request"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/testutil"
)

func TestFlowCreate(t *testing.T) {
	t.Run("records a new flow", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFlowHandler(testutil.NewTestLedgerService(t, db, testutil.NewFakeOracle(nil)))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/flows", request.CreateFlowRequest{
			FlowType:          "deposit",
			AmountUSD:         500,
			ExternalReference: "sig-handler-1",
		})
		rr := httptest.NewRecorder()
		handler.Create(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp handlers.FlowRecordResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Result != "recorded" {
			t.Errorf("Expected result 'recorded', got %q", resp.Result)
		}
		if resp.Flow == nil || resp.Flow.AmountUSD != 500 {
			t.Errorf("Expected the recorded flow in the response, got %+v", resp.Flow)
		}

		entries, err := repository.NewAuditRepository(db).List(req.Context(), 10)
		if err != nil {
			t.Fatalf("Failed to list audit entries: %v", err)
		}
		if len(entries) != 1 || entries[0].Action != "manual_flow" {
			t.Errorf("Expected one manual_flow audit entry, got %+v", entries)
		}
	})

	t.Run("replayed reference returns 200 duplicate_ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFlowHandler(testutil.NewTestLedgerService(t, db, testutil.NewFakeOracle(nil)))

		body := request.CreateFlowRequest{
			FlowType:          "deposit",
			AmountUSD:         100,
			ExternalReference: "sig-handler-replay",
		}

		first := httptest.NewRecorder()
		handler.Create(first, testutil.NewJSONRequest(t, http.MethodPost, "/api/flows", body))
		if first.Code != http.StatusCreated {
			t.Fatalf("Expected status 201 on first submit, got %d", first.Code)
		}

		second := httptest.NewRecorder()
		handler.Create(second, testutil.NewJSONRequest(t, http.MethodPost, "/api/flows", body))
		if second.Code != http.StatusOK {
			t.Fatalf("Expected status 200 on replay, got %d", second.Code)
		}

		var resp handlers.FlowRecordResponse
		if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Result != "duplicate_ignored" {
			t.Errorf("Expected result 'duplicate_ignored', got %q", resp.Result)
		}
	})

	t.Run("validation failure returns 400", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFlowHandler(testutil.NewTestLedgerService(t, db, testutil.NewFakeOracle(nil)))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/flows", request.CreateFlowRequest{
			FlowType:  "transfer",
			AmountUSD: -5,
		})
		rr := httptest.NewRecorder()
		handler.Create(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})
}

func TestFlowList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.NewFlowHandler(testutil.NewTestLedgerService(t, db, testutil.NewFakeOracle(nil)))

	testutil.NewFlow().WithAmount(100).At(time.Now().Add(-48 * time.Hour)).Build(t, db)
	testutil.NewFlow().WithAmount(200).At(time.Now()).Build(t, db)

	t.Run("returns all flows by default", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/flows", nil)
		rr := httptest.NewRecorder()
		handler.List(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}

		var flows []model.CapitalFlow
		if err := json.Unmarshal(rr.Body.Bytes(), &flows); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(flows) != 2 {
			t.Errorf("Expected 2 flows, got %d", len(flows))
		}
	})

	t.Run("since filters older flows", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/flows", map[string]string{
			"since": time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
		})
		rr := httptest.NewRecorder()
		handler.List(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}

		var flows []model.CapitalFlow
		if err := json.Unmarshal(rr.Body.Bytes(), &flows); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(flows) != 1 {
			t.Errorf("Expected 1 flow, got %d", len(flows))
		}
	})

	t.Run("invalid since returns 400", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/flows", map[string]string{
			"since": "not-a-date",
		})
		rr := httptest.NewRecorder()
		handler.List(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})
}
