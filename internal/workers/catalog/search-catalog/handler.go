// internal/workers/catalog/search-catalog/handler.go
package searchcatalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"

	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/common/metrics"
)

const (
	TaskType = "search-catalog"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
	ErrIndexNotFound     = errors.New("INDEX_NOT_FOUND")
)

type Handler struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "SEARCH_QUERY_FAILED"
		retries := int32(3)
		if errors.Is(err, ErrSearchTimeout) {
			errorCode = "SEARCH_TIMEOUT"
			retries = 2
		} else if errors.Is(err, ErrIndexNotFound) {
			errorCode = "INDEX_NOT_FOUND"
			retries = 0
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	query := h.buildQuery(input)

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	size := input.Size
	if size <= 0 || size > h.config.MaxHits {
		size = h.config.MaxHits
	}

	res, err := h.client.Search(
		h.client.Search.WithContext(ctx),
		h.client.Search.WithIndex(h.config.IndexName),
		h.client.Search.WithBody(bytes.NewReader(body)),
		h.client.Search.WithSize(size),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, h.config.IndexName)
		}
		return nil, fmt.Errorf("%w: status %s", ErrSearchQueryFailed, res.Status())
	}

	var esResponse struct {
		Took int `json:"took"`
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrSearchQueryFailed, err)
	}

	pumps := make([]map[string]interface{}, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		pumps = append(pumps, hit.Source)
	}

	h.logger.Info("catalog searched", map[string]interface{}{
		"totalHits": esResponse.Hits.Total.Value,
		"returned":  len(pumps),
		"took":      esResponse.Took,
	})

	return &Output{
		Pumps:     pumps,
		TotalHits: esResponse.Hits.Total.Value,
		Took:      esResponse.Took,
	}, nil
}

// buildQuery assembles a bool query from free text plus structured filters.
func (h *Handler) buildQuery(input *Input) map[string]interface{} {
	var must []interface{}
	var filter []interface{}

	if q := strings.TrimSpace(input.Query); q != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"model^3", "family^2", "applications", "features"},
			},
		})
	}

	if input.Application != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"applications": input.Application},
		})
	}
	if input.Family != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"family.keyword": input.Family},
		})
	}
	if input.MinFlowM3H != nil {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{
				"specs.max_flow_m3h": map[string]interface{}{"gte": *input.MinFlowM3H},
			},
		})
	}
	if input.MinHeadM != nil {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{
				"specs.max_head_m": map[string]interface{}{"gte": *input.MinHeadM},
			},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	if len(boolQuery) == 0 {
		return map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

// Execute exposes the core logic for tests and direct invocation.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
