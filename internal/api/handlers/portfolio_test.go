package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/watchtowerhq/watchtower/internal/api/handlers"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/testutil"
)

func TestPortfolioHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.NewPortfolioHandler(
		nil, nil, nil, nil,
		repository.NewSnapshotRepository(db),
	)

	testutil.NewSnapshot().At(time.Now().Add(-72 * time.Hour)).Build(t, db)
	testutil.NewSnapshot().At(time.Now().Add(-12 * time.Hour)).Build(t, db)

	t.Run("returns snapshots inside the window", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio/history", map[string]string{
			"since": time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
		})
		rr := httptest.NewRecorder()
		handler.History(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var snaps []model.Snapshot
		if err := json.Unmarshal(rr.Body.Bytes(), &snaps); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(snaps) != 1 {
			t.Errorf("Expected 1 snapshot, got %d", len(snaps))
		}
	})

	t.Run("missing since returns 400", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio/history", nil)
		rr := httptest.NewRecorder()
		handler.History(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})

	t.Run("inverted window returns 400", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/portfolio/history", map[string]string{
			"since": time.Now().Format(time.RFC3339),
			"until": time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
		})
		rr := httptest.NewRecorder()
		handler.History(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})
}
