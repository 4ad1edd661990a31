// Package pipeline orchestrates one natural-language question end to end:
// input validation, store context, prompt, the retried completion call,
// response parsing, SQL safety validation and result assembly.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	stderrors "commerce-insights/internal/common/errors"
	"commerce-insights/internal/common/genai"
	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/common/metrics"
	"commerce-insights/internal/insights/prompt"
	"commerce-insights/internal/insights/sqlguard"
	"commerce-insights/internal/models"
)

// SchemaService supplies the per-store facts the prompt is grounded on.
type SchemaService interface {
	GetStoreContext(ctx context.Context, storeID string) (models.StoreContext, error)
}

// Schema for the optional chartSpec subdocument of the model's reply. An
// answer failing it just loses its chart; the sql/explanation fields get
// field-specific errors instead, so they are checked by hand.
var chartSpecSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["type", "title", "dataKey", "labelKey"],
	"properties": {
		"type": {"type": "string", "enum": ["bar", "line", "pie", "doughnut", "table"]},
		"title": {"type": "string", "minLength": 1},
		"dataKey": {"type": "string", "minLength": 1},
		"labelKey": {"type": "string", "minLength": 1},
		"xLabel": {"type": "string"},
		"yLabel": {"type": "string"}
	}
}`)

// Service is the question pipeline. Stateless per request; the injected
// collaborators are treated as thread-safe handles.
type Service struct {
	llm    genai.ChatClient
	schema SchemaService
	logger logger.Logger

	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration

	// sleep is swapped out in tests so backoff does not slow them down.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(llm genai.ChatClient, schema SchemaService, log logger.Logger, maxRetries int, backoffBase, backoffMax time.Duration) *Service {
	if maxRetries < 0 {
		maxRetries = 3
	}
	return &Service{
		llm:         llm,
		schema:      schema,
		logger:      log,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
		sleep:       genai.SleepContext,
	}
}

// ProcessQuestion turns one question into a validated, parameterized query.
// On success the returned SQL always satisfies the full sqlguard rule set
// and Params[0] equals storeID.
func (s *Service) ProcessQuestion(ctx context.Context, storeID, question string) (*models.AIQueryResult, error) {
	result, err := s.process(ctx, storeID, question)
	if err != nil {
		metrics.QuestionsProcessed.WithLabelValues("error").Inc()
		return nil, ensureTyped(err)
	}
	metrics.QuestionsProcessed.WithLabelValues("success").Inc()
	return result, nil
}

func (s *Service) process(ctx context.Context, storeID, question string) (*models.AIQueryResult, error) {
	if _, err := uuid.Parse(storeID); err != nil {
		return nil, stderrors.NewInvalidStoreIDError(storeID)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, stderrors.NewQuestionEmptyError()
	}
	if n := utf8.RuneCountInString(question); n > models.QuestionMaxLength {
		return nil, stderrors.NewQuestionTooLongError(n, models.QuestionMaxLength)
	}

	log := s.logger.WithFields(map[string]interface{}{"store_id": storeID})

	storeContext, err := s.schema.GetStoreContext(ctx, storeID)
	if err != nil {
		return nil, stderrors.NewAIPipelineFailedError(err)
	}

	content, err := s.complete(ctx, prompt.BuildSystemPrompt(storeContext), question, log)
	if err != nil {
		return nil, err
	}

	answer, err := parseAnswer(content)
	if err != nil {
		return nil, err
	}

	validation := sqlguard.Validate(answer.SQL)
	if !validation.Valid {
		metrics.SQLValidationFailures.Inc()
		// Full findings go to logs only; the caller gets the one
		// generic message so probing questions learn nothing.
		log.Warn("generated SQL rejected", map[string]interface{}{
			"violations": strings.Join(validation.Errors, "; "),
			"sql":        answer.SQL,
		})
		return nil, stderrors.NewAIUnsafeQueryError()
	}

	return &models.AIQueryResult{
		SQL:         validation.SQL,
		Params:      []any{storeID},
		Explanation: answer.Explanation,
		ChartSpec:   s.validateChartSpec(answer.ChartSpec, log),
	}, nil
}

// complete runs the chat call under the retry policy: transient transport
// failures are re-issued after exponential backoff, everything else raises
// immediately without consuming retry budget.
func (s *Service) complete(ctx context.Context, systemPrompt, question string, log logger.Logger) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.LLMRetries.Inc()
			delay := genai.BackoffDelay(attempt-1, s.backoffBase, s.backoffMax)
			log.Warn("retrying chat completion", map[string]interface{}{
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
			})
			if err := s.sleep(ctx, delay); err != nil {
				return "", stderrors.NewAIUnavailableError(err)
			}
		}

		content, err := s.llm.Complete(ctx, systemPrompt, question)
		if err == nil {
			metrics.LLMRequests.WithLabelValues("success").Inc()
			return content, nil
		}
		lastErr = err

		if errors.Is(err, genai.ErrEmptyCompletion) {
			metrics.LLMRequests.WithLabelValues("empty").Inc()
			return "", stderrors.NewAIEmptyResponseError()
		}
		if !genai.IsRetryable(err) {
			metrics.LLMRequests.WithLabelValues("error").Inc()
			return "", stderrors.NewAIPipelineFailedError(err)
		}
		metrics.LLMRequests.WithLabelValues("retryable_error").Inc()
	}

	return "", stderrors.NewAIUnavailableError(lastErr)
}

// parseAnswer strips optional markdown fencing, decodes the JSON body and
// checks the required fields.
func parseAnswer(content string) (*models.GeneratedAnswer, error) {
	var answer models.GeneratedAnswer
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &answer); err != nil {
		return nil, stderrors.NewAIMalformedResponseError(err)
	}
	if strings.TrimSpace(answer.SQL) == "" {
		return nil, stderrors.NewAIMissingFieldError("sql")
	}
	if strings.TrimSpace(answer.Explanation) == "" {
		return nil, stderrors.NewAIMissingFieldError("explanation")
	}
	return &answer, nil
}

// validateChartSpec promotes the raw spec to a typed one, or drops it to nil
// when it fails the schema. A bad chart is an enhancement lost, never an
// error.
func (s *Service) validateChartSpec(raw *models.RawChartSpec, log logger.Logger) *models.ChartSpec {
	if raw == nil {
		return nil
	}

	result, err := gojsonschema.Validate(chartSpecSchema, gojsonschema.NewGoLoader(raw))
	if err != nil || !result.Valid() {
		fields := map[string]interface{}{"chart_type": raw.Type}
		if err != nil {
			fields["error"] = err.Error()
		} else {
			issues := make([]string, 0, len(result.Errors()))
			for _, issue := range result.Errors() {
				issues = append(issues, issue.String())
			}
			fields["issues"] = strings.Join(issues, "; ")
		}
		log.Debug("dropping invalid chart spec", fields)
		return nil
	}

	return &models.ChartSpec{
		Type:     models.ChartType(raw.Type),
		Title:    raw.Title,
		DataKey:  raw.DataKey,
		LabelKey: raw.LabelKey,
		XLabel:   raw.XLabel,
		YLabel:   raw.YLabel,
	}
}

// stripCodeFences removes a surrounding ``` or ```json fence. Models add
// them even when told not to.
func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		tag := strings.TrimSpace(t[:i])
		if tag != "" && !strings.ContainsAny(tag, "{}") {
			t = strings.TrimSpace(t[i+1:])
		}
	}
	return t
}

// ensureTyped guarantees every error leaving the pipeline carries a code.
func ensureTyped(err error) error {
	if stderrors.CodeOf(err) != "" {
		return err
	}
	return stderrors.NewAIPipelineFailedError(err)
}
