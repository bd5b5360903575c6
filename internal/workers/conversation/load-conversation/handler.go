// internal/workers/conversation/load-conversation/handler.go
package loadconversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"

	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/common/metrics"
	"pump-advisor-workers/internal/engine"
	"pump-advisor-workers/internal/models"
)

const (
	TaskType = "load-conversation"
)

var (
	ErrConversationNotFound = errors.New("CONVERSATION_NOT_FOUND")
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
)

type Handler struct {
	config      *Config
	db          *sql.DB
	redisClient *redis.Client
	logger      logger.Logger
}

func NewHandler(config *Config, db *sql.DB, redisClient *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		db:          db,
		redisClient: redisClient,
		logger:      log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		errorCode := "QUERY_EXECUTION_FAILED"
		retries := int32(3)
		if errors.Is(err, ErrConversationNotFound) {
			errorCode = "CONVERSATION_NOT_FOUND"
			retries = 0
		} else if errors.Is(err, ErrQueryTimeout) {
			errorCode = "QUERY_TIMEOUT"
			retries = 2
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversationId is required", ErrConversationNotFound)
	}

	if cached, ok := h.fromCache(ctx, input.ConversationID); ok {
		cached.FromCache = true
		if input.LatestMessage != "" {
			h.storeInbound(ctx, input.ConversationID, input.LatestMessage)
			cached.Messages = append(cached.Messages, engine.Message{Role: "user", Content: input.LatestMessage})
			h.toCache(ctx, input.ConversationID, cached)
		}
		return cached, nil
	}

	output, err := h.loadFromDB(ctx, input.ConversationID)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrQueryTimeout
		}
		return nil, err
	}

	if input.LatestMessage != "" {
		h.storeInbound(ctx, input.ConversationID, input.LatestMessage)
		output.Messages = append(output.Messages, engine.Message{Role: "user", Content: input.LatestMessage})
	}

	h.toCache(ctx, input.ConversationID, output)

	h.logger.Info("conversation loaded", map[string]interface{}{
		"conversationId": input.ConversationID,
		"messageCount":   len(output.Messages),
	})

	return output, nil
}

// storeInbound records the inbound user message. Failure to record never
// fails the job; the turn still proceeds with the message in memory.
func (h *Handler) storeInbound(ctx context.Context, conversationID, text string) {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, text) VALUES ($1, 'user', $2)`,
		conversationID, text,
	)
	if err != nil {
		h.logger.Warn("failed to record inbound message", map[string]interface{}{
			"conversationId": conversationID,
			"error":          err,
		})
	}
}

func (h *Handler) cacheKey(conversationID string) string {
	return "advisor:conv:" + conversationID
}

func (h *Handler) fromCache(ctx context.Context, conversationID string) (*Output, bool) {
	if h.redisClient == nil {
		return nil, false
	}
	val, err := h.redisClient.Get(ctx, h.cacheKey(conversationID)).Result()
	if err != nil {
		return nil, false
	}
	var output Output
	if err := json.Unmarshal([]byte(val), &output); err != nil {
		return nil, false
	}
	return &output, true
}

func (h *Handler) toCache(ctx context.Context, conversationID string, output *Output) {
	if h.redisClient == nil {
		return
	}
	data, err := json.Marshal(output)
	if err != nil {
		return
	}
	if err := h.redisClient.Set(ctx, h.cacheKey(conversationID), data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("cache write failed", map[string]interface{}{
			"conversationId": conversationID,
			"error":          err,
		})
	}
}

func (h *Handler) loadFromDB(ctx context.Context, conversationID string) (*Output, error) {
	var stateJSON sql.NullString
	var lastAction sql.NullString

	row := h.db.QueryRowContext(ctx,
		`SELECT state, last_action FROM conversations WHERE id = $1`,
		conversationID,
	)
	if err := row.Scan(&stateJSON, &lastAction); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	var state engine.ConversationState
	if stateJSON.Valid && stateJSON.String != "" {
		if err := json.Unmarshal([]byte(stateJSON.String), &state); err != nil {
			h.logger.Warn("stored state is not valid JSON, starting clean", map[string]interface{}{
				"conversationId": conversationID,
			})
		}
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT role, text FROM conversation_messages
		 WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT $2`,
		conversationID, h.config.MaxMessages,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}
	defer rows.Close()

	var messages []engine.Message
	for rows.Next() {
		var row models.ConversationMessage
		if err := rows.Scan(&row.Role, &row.Text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
		}
		messages = append(messages, engine.Message{Role: row.Role, Content: row.Text})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	return &Output{
		ConversationID: conversationID,
		Messages:       messages,
		State:          state,
		LastAction:     lastAction.String,
	}, nil
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
