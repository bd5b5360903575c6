// internal/workers/catalog/search-catalog/handler_test.go
package searchcatalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-advisor-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:   10 * time.Second,
		IndexName: "pump-catalog",
		MaxHits:   10,
	}
}

func newTestESClient(t *testing.T, handlerFunc http.HandlerFunc) *elasticsearch.Client {
	server := httptest.NewServer(handlerFunc)
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{server.URL},
	})
	require.NoError(t, err)
	return client
}

func writeESResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func floatPtr(v float64) *float64 { return &v }

const searchResponse = `{
	"took": 7,
	"hits": {
		"total": {"value": 2},
		"hits": [
			{"_source": {"id": "scala2", "model": "SCALA2 3-45", "family": "SCALA2"}},
			{"_source": {"id": "cm", "model": "CM 3-4", "family": "CM"}}
		]
	}
}`

// ==========================
// Query Building Tests
// ==========================

func TestHandler_BuildQuery(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, logger.NewTestLogger(t))

	tests := []struct {
		name     string
		input    *Input
		validate func(t *testing.T, query map[string]interface{})
	}{
		{
			name:  "empty input falls back to match_all",
			input: &Input{},
			validate: func(t *testing.T, query map[string]interface{}) {
				q := query["query"].(map[string]interface{})
				assert.Contains(t, q, "match_all")
			},
		},
		{
			name:  "free text becomes multi_match",
			input: &Input{Query: "booster pump"},
			validate: func(t *testing.T, query map[string]interface{}) {
				boolQuery := query["query"].(map[string]interface{})["bool"].(map[string]interface{})
				must := boolQuery["must"].([]interface{})
				require.Len(t, must, 1)
				multiMatch := must[0].(map[string]interface{})["multi_match"].(map[string]interface{})
				assert.Equal(t, "booster pump", multiMatch["query"])
				assert.Contains(t, multiMatch["fields"], "model^3")
			},
		},
		{
			name:  "application and family become term filters",
			input: &Input{Application: "Heating", Family: "MAGNA3"},
			validate: func(t *testing.T, query map[string]interface{}) {
				boolQuery := query["query"].(map[string]interface{})["bool"].(map[string]interface{})
				assert.NotContains(t, boolQuery, "must")
				filter := boolQuery["filter"].([]interface{})
				require.Len(t, filter, 2)
			},
		},
		{
			name:  "hydraulic minimums become range filters",
			input: &Input{MinFlowM3H: floatPtr(10), MinHeadM: floatPtr(40)},
			validate: func(t *testing.T, query map[string]interface{}) {
				boolQuery := query["query"].(map[string]interface{})["bool"].(map[string]interface{})
				filter := boolQuery["filter"].([]interface{})
				require.Len(t, filter, 2)
				flowRange := filter[0].(map[string]interface{})["range"].(map[string]interface{})
				assert.Contains(t, flowRange, "specs.max_flow_m3h")
			},
		},
		{
			name:  "whitespace-only text treated as empty",
			input: &Input{Query: "   "},
			validate: func(t *testing.T, query map[string]interface{}) {
				q := query["query"].(map[string]interface{})
				assert.Contains(t, q, "match_all")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, handler.buildQuery(tt.input))
		})
	}
}

// ==========================
// Search Execution Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	var capturedPath string
	var capturedBody map[string]interface{}

	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&capturedBody)
		writeESResponse(w, http.StatusOK, searchResponse)
	})

	handler := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Query: "booster"})

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, "/pump-catalog/_search", capturedPath)
	assert.Contains(t, capturedBody, "query")
	assert.Equal(t, 2, output.TotalHits)
	assert.Equal(t, 7, output.Took)
	require.Len(t, output.Pumps, 2)
	assert.Equal(t, "SCALA2 3-45", output.Pumps[0]["model"])
}

func TestHandler_Execute_SizeClampedToMaxHits(t *testing.T) {
	var capturedSize string

	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		capturedSize = r.URL.Query().Get("size")
		writeESResponse(w, http.StatusOK, searchResponse)
	})

	handler := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{Size: 500})

	require.NoError(t, err)
	assert.Equal(t, "10", capturedSize)
}

func TestHandler_Execute_IndexNotFound(t *testing.T) {
	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeESResponse(w, http.StatusNotFound, `{"error":{"type":"index_not_found_exception"}}`)
	})

	handler := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Query: "booster"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexNotFound))
	assert.Nil(t, output)
}

func TestHandler_Execute_ServerError(t *testing.T) {
	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeESResponse(w, http.StatusInternalServerError, `{"error":{"type":"search_phase_execution_exception"}}`)
	})

	handler := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Query: "booster"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrSearchQueryFailed))
	assert.Nil(t, output)
}

func TestHandler_Execute_MalformedResponse(t *testing.T) {
	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeESResponse(w, http.StatusOK, "not json {{")
	})

	handler := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Query: "booster"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrSearchQueryFailed))
	assert.Nil(t, output)
}

func TestHandler_Execute_EmptyResults(t *testing.T) {
	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeESResponse(w, http.StatusOK, `{"took":1,"hits":{"total":{"value":0},"hits":[]}}`)
	})

	handler := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Query: "no such pump"})

	require.NoError(t, err)
	assert.Zero(t, output.TotalHits)
	assert.Empty(t, output.Pumps)
}
