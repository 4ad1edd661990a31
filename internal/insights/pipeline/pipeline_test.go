package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "commerce-insights/internal/common/errors"
	"commerce-insights/internal/common/genai"
	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/models"
)

const storeID = "9e4b2a6e-1111-4c1d-8a2b-000000000001"

const goodAnswer = `{"sql": "SELECT COUNT(*) AS orders FROM orders WHERE store_id = $1", "explanation": "Total number of orders for this store.", "chartSpec": null}`

// scriptedLLM returns its entries in order, repeating the last one.
type scriptedLLM struct {
	calls   int
	prompts []string
	script  []func() (string, error)
}

func (s *scriptedLLM) Complete(_ context.Context, systemPrompt, _ string) (string, error) {
	s.prompts = append(s.prompts, systemPrompt)
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i]()
}

func ok(content string) func() (string, error) {
	return func() (string, error) { return content, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

type stubSchema struct {
	err error
}

func (s *stubSchema) GetStoreContext(context.Context, string) (models.StoreContext, error) {
	if s.err != nil {
		return models.StoreContext{}, s.err
	}
	return models.StoreContext{StoreID: storeID, Currency: "EUR"}, nil
}

// newService wires a pipeline whose sleep records delays instead of waiting.
func newService(t *testing.T, llm genai.ChatClient, schema SchemaService) (*Service, *[]time.Duration) {
	t.Helper()
	svc := New(llm, schema, logger.NewTestLogger(t), 3, 500*time.Millisecond, 8*time.Second)
	var delays []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return svc, &delays
}

func TestProcessQuestion_HappyPath(t *testing.T) {
	llm := &scriptedLLM{script: []func() (string, error){ok(goodAnswer)}}
	svc, _ := newService(t, llm, &stubSchema{})

	res, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders do I have?")

	require.NoError(t, err)
	assert.Contains(t, res.SQL, "store_id = $1")
	assert.Contains(t, res.SQL, "LIMIT")
	assert.Equal(t, []any{storeID}, res.Params)
	assert.Equal(t, "Total number of orders for this store.", res.Explanation)
	assert.Nil(t, res.ChartSpec)
	assert.Equal(t, 1, llm.calls)
}

func TestProcessQuestion_PromptCarriesStoreContext(t *testing.T) {
	llm := &scriptedLLM{script: []func() (string, error){ok(goodAnswer)}}
	svc, _ := newService(t, llm, &stubSchema{})

	_, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders do I have?")

	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Currency: EUR")
	assert.Contains(t, llm.prompts[0], "store_id = $1")
}

func TestProcessQuestion_FencedAnswerAccepted(t *testing.T) {
	fenced := "```json\n" + goodAnswer + "\n```"
	llm := &scriptedLLM{script: []func() (string, error){ok(fenced)}}
	svc, _ := newService(t, llm, &stubSchema{})

	res, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders do I have?")

	require.NoError(t, err)
	assert.Contains(t, res.SQL, "store_id = $1")
}

func TestProcessQuestion_InputValidation(t *testing.T) {
	llm := &scriptedLLM{script: []func() (string, error){ok(goodAnswer)}}
	svc, _ := newService(t, llm, &stubSchema{})
	ctx := context.Background()

	_, err := svc.ProcessQuestion(ctx, "not-a-uuid", "How many orders?")
	assert.Equal(t, stderrors.ErrCodeInvalidStoreID, stderrors.CodeOf(err))

	_, err = svc.ProcessQuestion(ctx, storeID, "   ")
	assert.Equal(t, stderrors.ErrCodeQuestionEmpty, stderrors.CodeOf(err))

	_, err = svc.ProcessQuestion(ctx, storeID, strings.Repeat("x", models.QuestionMaxLength+1))
	assert.Equal(t, stderrors.ErrCodeQuestionTooLong, stderrors.CodeOf(err))

	assert.Equal(t, 0, llm.calls, "invalid input never reaches the model")
}

func TestProcessQuestion_RetriesOnRateLimitThenSucceeds(t *testing.T) {
	rateLimited := &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}
	llm := &scriptedLLM{script: []func() (string, error){fail(rateLimited), ok(goodAnswer)}}
	svc, delays := newService(t, llm, &stubSchema{})

	res, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders?")

	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, *delays)
}

func TestProcessQuestion_ExhaustsRetryBudget(t *testing.T) {
	rateLimited := &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}
	llm := &scriptedLLM{script: []func() (string, error){fail(rateLimited)}}
	svc, delays := newService(t, llm, &stubSchema{})

	_, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders?")

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeAIUnavailable, stderrors.CodeOf(err))
	assert.Equal(t, 4, llm.calls, "initial attempt plus three retries")
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
	}, *delays, "exponential backoff progression")
	assert.ErrorIs(t, err, rateLimited, "last failure kept as cause")
}

func TestProcessQuestion_NonRetryableFailsImmediately(t *testing.T) {
	badAuth := &openai.APIError{HTTPStatusCode: 401, Message: "invalid key"}
	llm := &scriptedLLM{script: []func() (string, error){fail(badAuth)}}
	svc, delays := newService(t, llm, &stubSchema{})

	_, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders?")

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeAIPipelineFailed, stderrors.CodeOf(err))
	assert.Equal(t, 1, llm.calls, "no retry budget spent")
	assert.Empty(t, *delays)
}

func TestProcessQuestion_EmptyCompletion(t *testing.T) {
	llm := &scriptedLLM{script: []func() (string, error){fail(genai.ErrEmptyCompletion)}}
	svc, _ := newService(t, llm, &stubSchema{})

	_, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders?")

	assert.Equal(t, stderrors.ErrCodeAIEmptyResponse, stderrors.CodeOf(err))
	assert.Equal(t, 1, llm.calls)
}

func TestProcessQuestion_MalformedAnswer(t *testing.T) {
	llm := &scriptedLLM{script: []func() (string, error){ok("I cannot answer that")}}
	svc, _ := newService(t, llm, &stubSchema{})

	_, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders?")

	assert.Equal(t, stderrors.ErrCodeAIMalformedResponse, stderrors.CodeOf(err))
}

func TestProcessQuestion_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		field  string
	}{
		{"missing sql", `{"explanation": "something"}`, "sql"},
		{"blank sql", `{"sql": "  ", "explanation": "something"}`, "sql"},
		{"missing explanation", `{"sql": "SELECT 1 FROM orders WHERE store_id = $1"}`, "explanation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{script: []func() (string, error){ok(tt.answer)}}
			svc, _ := newService(t, llm, &stubSchema{})

			_, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders?")

			require.Error(t, err)
			assert.Equal(t, stderrors.ErrCodeAIMissingField, stderrors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

// A destructive statement must surface as the one generic refusal, with
// none of the validator's findings leaking to the caller.
func TestProcessQuestion_UnsafeSQLCollapsesToGenericError(t *testing.T) {
	answer := `{"sql": "DELETE FROM orders WHERE store_id = $1", "explanation": "removes orders"}`
	llm := &scriptedLLM{script: []func() (string, error){ok(answer)}}
	svc, _ := newService(t, llm, &stubSchema{})

	_, err := svc.ProcessQuestion(context.Background(), storeID, "Delete my orders")

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeAIUnsafeQuery, stderrors.CodeOf(err))

	var se *stderrors.StandardError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Unable to process this question", se.Message)
	assert.Empty(t, se.Details)
	assert.NotContains(t, err.Error(), "DELETE")
}

func TestProcessQuestion_SchemaFailureWrapped(t *testing.T) {
	boom := errors.New("postgres down")
	llm := &scriptedLLM{script: []func() (string, error){ok(goodAnswer)}}
	svc, _ := newService(t, llm, &stubSchema{err: boom})

	_, err := svc.ProcessQuestion(context.Background(), storeID, "How many orders?")

	assert.Equal(t, stderrors.ErrCodeAIPipelineFailed, stderrors.CodeOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, llm.calls)
}

func TestProcessQuestion_ValidChartSpec(t *testing.T) {
	answer := `{
		"sql": "SELECT title, revenue FROM products WHERE store_id = $1",
		"explanation": "Revenue per product.",
		"chartSpec": {"type": "bar", "title": "Revenue", "dataKey": "revenue", "labelKey": "title", "yLabel": "EUR"}
	}`
	llm := &scriptedLLM{script: []func() (string, error){ok(answer)}}
	svc, _ := newService(t, llm, &stubSchema{})

	res, err := svc.ProcessQuestion(context.Background(), storeID, "Revenue per product?")

	require.NoError(t, err)
	require.NotNil(t, res.ChartSpec)
	assert.Equal(t, models.ChartTypeBar, res.ChartSpec.Type)
	assert.Equal(t, "Revenue", res.ChartSpec.Title)
	assert.Equal(t, "EUR", res.ChartSpec.YLabel)
}

// Chart problems are silently dropped, never turned into request failures.
func TestProcessQuestion_InvalidChartSpecDropped(t *testing.T) {
	tests := []struct {
		name  string
		chart string
	}{
		{"unknown type", `{"type": "radar", "title": "T", "dataKey": "d", "labelKey": "l"}`},
		{"missing title", `{"type": "bar", "dataKey": "d", "labelKey": "l"}`},
		{"empty dataKey", `{"type": "bar", "title": "T", "dataKey": "", "labelKey": "l"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := `{"sql": "SELECT 1 FROM orders WHERE store_id = $1", "explanation": "x", "chartSpec": ` + tt.chart + `}`
			llm := &scriptedLLM{script: []func() (string, error){ok(answer)}}
			svc, _ := newService(t, llm, &stubSchema{})

			res, err := svc.ProcessQuestion(context.Background(), storeID, "Anything?")

			require.NoError(t, err)
			assert.Nil(t, res.ChartSpec)
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"single line fence", "```{\"a\":1}```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFences(tt.in))
		})
	}
}
