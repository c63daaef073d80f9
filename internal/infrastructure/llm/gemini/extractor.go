package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/infrastructure/llm/invoicefields"
	"github.com/kirillkom/ap-automation/internal/infrastructure/resilience"
)

const DefaultModel = "gemini-1.5-flash"

// FieldExtractor asks Gemini for the invoice fields in JSON mode.
type FieldExtractor struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	executor *resilience.Executor
}

func NewFieldExtractor(ctx context.Context, apiKey, modelName string, executor *resilience.Executor) (*FieldExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	return &FieldExtractor{client: client, model: model, executor: executor}, nil
}

func (e *FieldExtractor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *FieldExtractor) ExtractFields(ctx context.Context, text string) (domain.ExtractedFields, error) {
	prompt := invoicefields.BuildPrompt(text)
	raw, err := resilience.Do(ctx, e.executor, resilience.OpExtractGemini, func(ctx context.Context) (string, error) {
		resp, err := e.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		return responseText(resp)
	}, classifyGeminiError)
	if err != nil {
		if classifyGeminiError(err).Retryable {
			return domain.ExtractedFields{}, domain.WrapError(domain.ErrTemporary, "gemini generate", err)
		}
		return domain.ExtractedFields{}, err
	}
	return invoicefields.Parse(raw)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini response has no text parts")
	}
	return b.String(), nil
}

func classifyGeminiError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if st, ok := status.FromError(errors.Unwrap(err)); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound, codes.FailedPrecondition:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
