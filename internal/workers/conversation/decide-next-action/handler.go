// internal/workers/conversation/decide-next-action/handler.go
package decidenextaction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/common/metrics"
	"pump-advisor-workers/internal/engine"
)

const (
	TaskType = "decide-next-action"
)

type Handler struct {
	config *Config
	engine *engine.Engine
	logger logger.Logger
}

func NewHandler(config *Config, eng *engine.Engine, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: eng,
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

	// NextAction is pure and in-memory; no timeout context needed.
	output := h.execute(&input)
	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(input *Input) *Output {
	decision := h.engine.NextAction(input.State, input.LatestMessage, engine.Action(input.LastAction))

	metrics.PolicyDecisions.WithLabelValues(string(decision.Action), string(input.State.Application)).Inc()
	if decision.NoMatch {
		metrics.NoMatchTotal.Inc()
	}
	if decision.Action == engine.ActionRecommend && len(decision.Pumps) > 0 {
		metrics.PumpMatches.WithLabelValues(decision.Pumps[0].FamilyKey()).Inc()
	}

	h.logger.Info("policy decision", map[string]interface{}{
		"action":      string(decision.Action),
		"application": string(input.State.Application),
		"pumpCount":   len(decision.Pumps),
		"noMatch":     decision.NoMatch,
	})

	return &Output{Decision: decision}
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
func (h *Handler) Execute(input *Input) *Output {
	return h.execute(input)
}
