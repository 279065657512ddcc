package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzePairRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze_transfers", r.URL.Path)

		var req PairRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1", req.SourceWarehouseID)
		assert.Equal(t, "2", req.TargetWarehouseID)

		w.Write([]byte(`{
			"analysis": "ok",
			"suggestions": [{"id": 7, "name": "Arroz", "qty": 12, "score": 0.9, "reason": "deficit"}],
			"opportunities": []
		}`))
	}))
	defer srv.Close()

	client := NewRecommendClient(srv.URL, 5*time.Second)
	result, err := client.AnalyzePair(context.Background(), &PairRequest{
		SourceWarehouseID: "1",
		TargetWarehouseID: "2",
	})
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, float64(12), result.Suggestions[0].Qty)
	assert.Equal(t, "deficit", result.Suggestions[0].Reason)
}

func TestAnalyzePairEmptyShape(t *testing.T) {
	// a 200 with an unrecognized body is a failure, not an empty result
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewRecommendClient(srv.URL, 5*time.Second)
	_, err := client.AnalyzePair(context.Background(), &PairRequest{})
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestAnalyzeNetworkRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze_all_transfers", r.URL.Path)

		var req NetworkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2", req.DestinationWarehouseID)
		assert.True(t, req.UseML)

		w.Write([]byte(`{
			"analysis": "ok",
			"products": [{
				"product_id": "7",
				"product_name": "Arroz",
				"dest_stock": 3,
				"dest_coverage_days": 3,
				"phase": "RESCATE",
				"top_sources": [{"source_id": "1", "qty": 10, "score": 0.8, "ml_applied": true}],
				"proposed_plan": [{"source_id": "1", "qty": 10}]
			}]
		}`))
	}))
	defer srv.Close()

	client := NewRecommendClient(srv.URL, 5*time.Second)
	result, err := client.AnalyzeNetwork(context.Background(), &NetworkRequest{
		DestinationWarehouseID: "2",
		UseML:                  true,
	})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "RESCATE", result.Products[0].Phase)
	require.Len(t, result.Products[0].TopSources, 1)
	assert.True(t, result.Products[0].TopSources[0].MLApplied)
}

func TestAnalyzeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRecommendClient(srv.URL, 5*time.Second)
	_, err := client.AnalyzeNetwork(context.Background(), &NetworkRequest{})
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}
