// internal/workers/conversation/extract-requirements/handler.go
package extractrequirements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"pump-advisor-workers/internal/common/genai"
	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/common/metrics"
	"pump-advisor-workers/internal/engine"
)

const (
	TaskType = "extract-requirements"
)

var (
	ErrIntentParsingFailed = errors.New("INTENT_PARSING_FAILED")
	ErrIntentAPITimeout    = errors.New("INTENT_API_TIMEOUT")
)

const intentSystemPrompt = `You extract pump requirements from a conversation.
Return ONLY a JSON object with any of these keys you are confident about:
application (heating|cooling|domestic_water|water_supply|wastewater|dosing),
buildingSize (small|medium|large), floors (int), bathrooms (int),
waterSource (mains|well|tank), problem (low_pressure|no_water|replacement|new_install|energy_saving),
flow_m3h (number), head_m (number), motor_kw (number),
existingPumpBrand (string), existingPump (string), existingPumpPower (number, kW).
Omit keys you are not sure about. Never guess numbers.`

// GenAIClient is the model surface this worker needs.
type GenAIClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Handler struct {
	config *Config
	ai     GenAIClient
	logger logger.Logger
}

func NewHandler(config *Config, ai GenAIClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		ai:     ai,
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
		errorCode := "INTENT_PARSING_FAILED"
		retries := int32(2)
		if errors.Is(err, ErrIntentAPITimeout) {
			errorCode = "INTENT_API_TIMEOUT"
			retries = 1
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Messages) == 0 {
		return &Output{State: input.PriorState, InfoQuality: engine.InfoQuality(input.PriorState)}, nil
	}

	// Pattern extraction is deterministic and cheap; run the model alongside
	// it and merge afterwards. The model never overrides a pattern hit.
	type llmResult struct {
		state engine.ConversationState
		used  bool
	}
	llmChan := make(chan llmResult, 1)

	if h.config.LLMEnabled && h.ai != nil {
		go func() {
			llmCtx, cancel := context.WithTimeout(ctx, h.config.LLMTimeout)
			defer cancel()
			state, err := h.extractWithLLM(llmCtx, input.Messages)
			if err != nil {
				h.logger.Warn("LLM extraction unavailable, using patterns only", map[string]interface{}{
					"error": err,
				})
				metrics.LLMFallbacks.WithLabelValues("extract").Inc()
				llmChan <- llmResult{}
				return
			}
			llmChan <- llmResult{state: state, used: true}
		}()
	} else {
		llmChan <- llmResult{}
	}

	patternState := engine.ExtractIntent(input.Messages)

	llm := <-llmChan
	merged := engine.MergeStates(patternState, llm.state)

	// Fields already confirmed in earlier turns survive even when the current
	// window no longer mentions them.
	merged = engine.MergeStates(merged, input.PriorState)

	quality := engine.InfoQuality(merged)

	h.logger.Info("requirements extracted", map[string]interface{}{
		"application": string(merged.Application),
		"infoQuality": quality,
		"llmUsed":     llm.used,
	})

	return &Output{
		State:       merged,
		InfoQuality: quality,
		LLMUsed:     llm.used,
	}, nil
}

func (h *Handler) extractWithLLM(ctx context.Context, messages []engine.Message) (engine.ConversationState, error) {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	answer, err := h.ai.Complete(ctx, intentSystemPrompt, sb.String())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return engine.ConversationState{}, ErrIntentAPITimeout
		}
		return engine.ConversationState{}, fmt.Errorf("%w: %v", ErrIntentParsingFailed, err)
	}

	var intent llmIntent
	if err := genai.UnmarshalJSONResponse(answer, &intent); err != nil {
		return engine.ConversationState{}, fmt.Errorf("%w: %v", ErrIntentParsingFailed, err)
	}

	return intent.toState(), nil
}

// toState maps validated model output onto the canonical state. Enum values
// outside the known sets are discarded rather than propagated.
func (i llmIntent) toState() engine.ConversationState {
	var s engine.ConversationState

	switch engine.Application(i.Application) {
	case engine.AppHeating, engine.AppCooling, engine.AppDomesticWater,
		engine.AppWaterSupply, engine.AppWastewater, engine.AppDosing:
		s.Application = engine.Application(i.Application)
	}

	switch engine.BuildingSize(i.BuildingSize) {
	case engine.SizeSmall, engine.SizeMedium, engine.SizeLarge:
		s.BuildingSize = engine.BuildingSize(i.BuildingSize)
	}

	switch engine.WaterSource(i.WaterSource) {
	case engine.SourceMains, engine.SourceWell, engine.SourceTank:
		s.WaterSource = engine.WaterSource(i.WaterSource)
	}

	switch engine.Problem(i.Problem) {
	case engine.ProblemLowPressure, engine.ProblemNoWater, engine.ProblemReplacement,
		engine.ProblemNewInstall, engine.ProblemEnergySaving:
		s.Problem = engine.Problem(i.Problem)
	}

	if i.Floors > 0 {
		s.Floors = i.Floors
	}
	if i.Bathrooms > 0 {
		s.Bathrooms = i.Bathrooms
	}
	if i.FlowM3H != nil && *i.FlowM3H > 0 {
		s.FlowM3H = i.FlowM3H
	}
	if i.HeadM != nil && *i.HeadM > 0 {
		s.HeadM = i.HeadM
	}
	if i.MotorKW != nil && *i.MotorKW > 0 {
		s.MotorKW = i.MotorKW
	}
	if i.PowerKW != nil && *i.PowerKW > 0 {
		s.ExistingPumpPower = i.PowerKW
	}
	s.ExistingPumpBrand = i.Brand
	s.ExistingPump = i.Model

	return s
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
