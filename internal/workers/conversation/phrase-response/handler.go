// internal/workers/conversation/phrase-response/handler.go
package phraseresponse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/common/metrics"
	"pump-advisor-workers/internal/engine"
	"pump-advisor-workers/pkg/catalog"
)

const (
	TaskType = "phrase-response"
)

var (
	ErrLLMTimeout        = errors.New("LLM_TIMEOUT")
	ErrLLMPhrasingFailed = errors.New("LLM_PHRASING_FAILED")
)

const phrasingSystemPrompt = `You are a friendly pump selection assistant for building owners.
Rephrase the structured decision below into one short conversational reply.
Rules:
- Plain language, no raw JSON, no internal field names.
- When suggestions are provided, end the reply with exactly one line:
  [SUGGESTIONS: first | second | third]
- When you restate requirements the user already gave, add one line:
  [REQUIREMENTS: Label=Value | Label=Value]
- Never invent pump models, numbers, or prices not present in the decision.
- Keep recommendations to a short intro sentence; the product cards are rendered separately.`

// GenAIClient is the model surface this worker needs.
type GenAIClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Handler struct {
	config  *Config
	ai      GenAIClient
	catalog *catalog.Catalog
	logger  logger.Logger
}

func NewHandler(config *Config, ai GenAIClient, cat *catalog.Catalog, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		ai:      ai,
		catalog: cat,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

	output := h.execute(ctx, &input)
	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// execute never fails the job: when the model is unavailable the reply is
// built deterministically from the decision.
func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	output := &Output{
		Suggestions:  input.Decision.Suggestions,
		Requirements: input.Decision.Requirements,
		Pumps:        input.Decision.Pumps,
	}

	if h.config.LLMEnabled && h.ai != nil {
		text, err := h.phraseWithLLM(ctx, input)
		if err == nil {
			cleaned, suggestions := parseSuggestionsMarker(text)
			cleaned, requirements := parseRequirementsMarker(cleaned)
			output.Text = cleaned
			if len(suggestions) > 0 {
				output.Suggestions = suggestions
			}
			if len(requirements) > 0 {
				output.Requirements = requirements
			}
			output.LLMUsed = true
			h.attachMentionedPumps(output)
			return output
		}
		h.logger.Warn("LLM phrasing unavailable, using fallback text", map[string]interface{}{
			"error": err,
		})
		metrics.LLMFallbacks.WithLabelValues("phrase").Inc()
	}

	output.Text = fallbackText(input.Decision)
	return output
}

// attachMentionedPumps attaches catalog cards for models the model named in
// prose, skipping pumps already present in the recommendation list.
func (h *Handler) attachMentionedPumps(output *Output) {
	if h.catalog == nil {
		return
	}
	recommended := make(map[string]bool, len(output.Pumps))
	for _, p := range output.Pumps {
		recommended[p.ID] = true
	}
	for _, p := range h.catalog.MatchModelsInText(output.Text) {
		if !recommended[p.ID] {
			output.MentionedPumps = append(output.MentionedPumps, p)
		}
	}
}

func (h *Handler) phraseWithLLM(ctx context.Context, input *Input) (string, error) {
	llmCtx, cancel := context.WithTimeout(ctx, h.config.LLMTimeout)
	defer cancel()

	decisionJSON, err := json.Marshal(input.Decision)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMPhrasingFailed, err)
	}

	var sb strings.Builder
	if input.LatestMessage != "" {
		sb.WriteString("User said: ")
		sb.WriteString(input.LatestMessage)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Decision:\n")
	sb.Write(decisionJSON)

	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		text, err := h.ai.Complete(llmCtx, phrasingSystemPrompt, sb.String())
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if llmCtx.Err() == context.DeadlineExceeded {
			return "", ErrLLMTimeout
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("empty response")
		}
	}
	return "", fmt.Errorf("%w: %v", ErrLLMPhrasingFailed, lastErr)
}

var suggestionsMarker = regexp.MustCompile(`(?s)\[SUGGESTIONS:\s*([^\]]+)\]`)

// parseSuggestionsMarker strips a trailing [SUGGESTIONS: a | b] marker from
// model output and returns its entries.
func parseSuggestionsMarker(text string) (string, []string) {
	m := suggestionsMarker.FindStringSubmatch(text)
	if m == nil {
		return strings.TrimSpace(text), nil
	}

	var suggestions []string
	for _, part := range strings.Split(m[1], "|") {
		if s := strings.TrimSpace(part); s != "" {
			suggestions = append(suggestions, s)
		}
	}

	cleaned := strings.TrimSpace(suggestionsMarker.ReplaceAllString(text, ""))
	return cleaned, suggestions
}

var requirementsMarker = regexp.MustCompile(`(?s)\[REQUIREMENTS:\s*([^\]]+)\]`)

// parseRequirementsMarker strips a [REQUIREMENTS: Label=Value | ...] marker
// from model output and returns its entries.
func parseRequirementsMarker(text string) (string, []engine.Requirement) {
	m := requirementsMarker.FindStringSubmatch(text)
	if m == nil {
		return strings.TrimSpace(text), nil
	}

	var requirements []engine.Requirement
	for _, part := range strings.Split(m[1], "|") {
		label, value, ok := strings.Cut(part, "=")
		label, value = strings.TrimSpace(label), strings.TrimSpace(value)
		if ok && label != "" && value != "" {
			requirements = append(requirements, engine.Requirement{Label: label, Value: value})
		}
	}

	cleaned := strings.TrimSpace(requirementsMarker.ReplaceAllString(text, ""))
	return cleaned, requirements
}

// fallbackText builds a serviceable reply without the model.
func fallbackText(decision engine.Result) string {
	switch decision.Action {
	case engine.ActionGreet:
		return "Hi! I can help you find the right pump. What are you looking for?"
	case engine.ActionRecommend:
		if len(decision.Pumps) == 0 {
			return "I couldn't find a matching pump for those requirements. Could you share a bit more detail?"
		}
		if len(decision.Pumps) == 1 {
			return fmt.Sprintf("Based on your requirements, I recommend the %s.", decision.Pumps[0].Model)
		}
		models := make([]string, 0, len(decision.Pumps))
		for _, p := range decision.Pumps {
			models = append(models, p.Model)
		}
		return fmt.Sprintf("Based on your requirements, here are my top picks: %s.", strings.Join(models, ", "))
	default:
		if decision.QuestionContext != "" {
			return decision.QuestionContext
		}
		return "Could you tell me a bit more about what you need the pump for?"
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
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input)
}
