package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/watchtowerhq/watchtower/internal/api/handlers"
	"github.com/watchtowerhq/watchtower/internal/api/request"
	"github.com/watchtowerhq/watchtower/internal/testutil"
)

func TestWebhookTransfers(t *testing.T) {
	account := testutil.TestAccount()

	t.Run("each event gets its own outcome", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		oracle := testutil.NewFakeOracle(map[string]float64{"token-a": 2})
		handler := handlers.NewWebhookHandler(testutil.NewTestLedgerService(t, db, oracle))

		batch := []request.TransferEventRequest{
			{
				From:              "someone-else",
				To:                account.TrackedAddress,
				AssetID:           "token-a",
				Amount:            10,
				ExternalReference: "sig-webhook-1",
			},
			{
				// Touches neither side of the tracked account.
				From:              "wallet-x",
				To:                "wallet-y",
				AssetID:           "token-a",
				Amount:            5,
				ExternalReference: "sig-webhook-2",
			},
			{
				// Missing both counterparties; fails validation.
				AssetID:           "token-a",
				Amount:            5,
				ExternalReference: "sig-webhook-3",
			},
		}

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/webhooks/transfers", batch)
		rr := httptest.NewRecorder()
		handler.Transfers(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var results []handlers.TransferResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("Expected 3 outcomes, got %d", len(results))
		}
		if results[0].Result != "recorded" {
			t.Errorf("Expected first event recorded, got %q", results[0].Result)
		}
		if results[1].Result != "rejected" {
			t.Errorf("Expected second event rejected, got %q", results[1].Result)
		}
		if results[1].Detail != "" {
			t.Errorf("Expected no detail for an unknown counterparty, got %q", results[1].Detail)
		}
		if results[2].Result != "rejected" {
			t.Errorf("Expected third event rejected, got %q", results[2].Result)
		}
	})

	t.Run("replayed event reports duplicate_ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		oracle := testutil.NewFakeOracle(map[string]float64{"token-a": 2})
		handler := handlers.NewWebhookHandler(testutil.NewTestLedgerService(t, db, oracle))

		batch := []request.TransferEventRequest{{
			From:              "someone-else",
			To:                account.TrackedAddress,
			AssetID:           "token-a",
			Amount:            10,
			ExternalReference: "sig-webhook-replay",
		}}

		first := httptest.NewRecorder()
		handler.Transfers(first, testutil.NewJSONRequest(t, http.MethodPost, "/api/webhooks/transfers", batch))
		if first.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", first.Code)
		}

		second := httptest.NewRecorder()
		handler.Transfers(second, testutil.NewJSONRequest(t, http.MethodPost, "/api/webhooks/transfers", batch))

		var results []handlers.TransferResponse
		if err := json.Unmarshal(second.Body.Bytes(), &results); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(results) != 1 || results[0].Result != "duplicate_ignored" {
			t.Errorf("Expected duplicate_ignored, got %+v", results)
		}
	})

	t.Run("empty batch returns 400", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewWebhookHandler(testutil.NewTestLedgerService(t, db, testutil.NewFakeOracle(nil)))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/webhooks/transfers", []request.TransferEventRequest{})
		rr := httptest.NewRecorder()
		handler.Transfers(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})
}
