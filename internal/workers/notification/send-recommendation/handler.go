// internal/workers/notification/send-recommendation/handler.go
package sendrecommendation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	werrors "pump-advisor-workers/internal/common/errors"
	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/common/metrics"
	"pump-advisor-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-recommendation"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config    *Config
	db        *sql.DB
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	errors    *werrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) (*Handler, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(config.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	workerLog := log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:    config,
		db:        db,
		logger:    workerLog,
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		errors:    werrors.NewErrorHandler(workerLog),
	}, nil
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
		if errors.Is(err, ErrNotificationSendFailed) {
			err = werrors.NewNotificationSendFailedError("recommendation", err)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "NOTIFICATION_SEND_FAILED").Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Pumps) == 0 {
		return nil, fmt.Errorf("no pumps to send")
	}

	sentAt := time.Now().UTC().Format(time.RFC3339)
	notificationID := uuid.New().String()

	subject, body := buildRecommendationMessage(input)

	emailSent := false
	smsSent := false

	if h.config.EmailEnabled && input.RecipientEmail != "" {
		if err := h.sendEmail(ctx, input.RecipientEmail, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error": err,
				"email": input.RecipientEmail,
			})
			return &Output{NotificationID: notificationID, Status: StatusFailed, SentAt: sentAt}, nil
		}
		emailSent = true
	}

	if h.config.SMSEnabled && input.RecipientPhone != "" {
		if err := h.sendSMS(ctx, input.RecipientPhone, smsSummary(input)); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error": err,
				"phone": input.RecipientPhone,
			})
			return &Output{NotificationID: notificationID, Status: StatusFailed, SentAt: sentAt}, nil
		}
		smsSent = true
	}

	if err := h.recordDelivery(ctx, notificationID, input); err != nil {
		h.logger.Warn("could not record recommendation delivery", map[string]interface{}{
			"conversationId": input.ConversationID,
			"error":          err,
		})
	}

	status := StatusDisabled
	if emailSent || smsSent {
		status = StatusSent
	}

	return &Output{
		NotificationID: notificationID,
		Status:         status,
		SentAt:         sentAt,
	}, nil
}

// buildRecommendationMessage renders a plain-text recommendation summary.
func buildRecommendationMessage(input *Input) (string, string) {
	top := input.Pumps[0]
	subject := fmt.Sprintf("Your pump recommendation: %s", top.Model)

	var sb strings.Builder
	if input.Summary != "" {
		sb.WriteString(input.Summary)
		sb.WriteString("\n\n")
	}
	if input.DutyPoint != nil {
		sb.WriteString(fmt.Sprintf("Estimated duty point: %.1f m³/h at %.1f m head.\n\n",
			input.DutyPoint.EstimatedFlowM3H, input.DutyPoint.EstimatedHeadM))
	}
	for i, p := range input.Pumps {
		sb.WriteString(fmt.Sprintf("%d. %s (%s match, %d%%)\n", i+1, p.Model, p.MatchLabel, p.MatchConfidence))
		if p.PriceRangePHP != "" {
			sb.WriteString(fmt.Sprintf("   Price: %s\n", p.PriceRangePHP))
		}
		if p.ROI.AnnualSavings > 0 {
			sb.WriteString(fmt.Sprintf("   Estimated annual savings: ₱%.0f\n", p.ROI.AnnualSavings))
		}
		if p.OversizingNote != "" {
			sb.WriteString("   " + p.OversizingNote + "\n")
		}
	}
	return subject, sb.String()
}

func smsSummary(input *Input) string {
	top := input.Pumps[0]
	return fmt.Sprintf("Recommended pump: %s (%s match). Check your email for full details.", top.Model, top.MatchLabel)
}

func (h *Handler) recordDelivery(ctx context.Context, notificationID string, input *Input) error {
	if h.db == nil {
		return nil
	}

	record := models.RecommendationRecord{
		ID:             notificationID,
		ConversationID: input.ConversationID,
	}
	for _, p := range input.Pumps {
		record.PumpIDs = append(record.PumpIDs, p.ID)
	}
	if input.DutyPoint != nil {
		record.FlowM3H = &input.DutyPoint.EstimatedFlowM3H
		record.HeadM = &input.DutyPoint.EstimatedHeadM
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO recommendations (id, conversation_id, pump_ids, flow_m3h, head_m, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		record.ID, record.ConversationID, strings.Join(record.PumpIDs, ","), record.FlowM3H, record.HeadM,
	)
	return err
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
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

