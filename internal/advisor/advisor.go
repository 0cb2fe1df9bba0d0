package advisor

import (
	"context"
	"fmt"
	"log"

	"stocksense/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// PredictionQuerier provides the model output the advisor comments on.
type PredictionQuerier interface {
	Predict(ctx context.Context, symbol string) (*domain.PredictionRecord, error)
	TopRecommendations(ctx context.Context, limit int) (*domain.Recommendations, error)
}

// AdvisorService turns prediction records into plain-language
// commentary. Without an LLM client it falls back to a deterministic
// summary built from the record itself.
type AdvisorService struct {
	tracer      trace.Tracer
	llm         LLMClient
	predictions PredictionQuerier
	model       string
}

func NewAdvisorService(
	tracer trace.Tracer,
	llm LLMClient,
	predictions PredictionQuerier,
	model string,
) *AdvisorService {
	return &AdvisorService{
		tracer:      tracer,
		llm:         llm,
		predictions: predictions,
		model:       model,
	}
}

// Explain produces commentary for one symbol's current prediction.
func (s *AdvisorService) Explain(ctx context.Context, symbol string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.explain")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	record, err := s.predictions.Predict(ctx, symbol)
	if err != nil {
		return "", err
	}
	if s.llm == nil {
		return HeuristicCommentary(record), nil
	}

	prompt := BuildSystemPrompt(FormatPredictionContext([]*domain.PredictionRecord{record}))
	reply, err := s.callLLM(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt),
		openai.UserMessage(fmt.Sprintf("Explain the current outlook for %s.", symbol)),
	})
	if err != nil {
		log.Printf("advisor LLM call failed, using heuristic commentary: %v", err)
		return HeuristicCommentary(record), nil
	}
	return reply, nil
}

// Ask answers a free-form question grounded in current predictions. The
// question's symbols select the context; with none mentioned, the top
// recommendations stand in.
func (s *AdvisorService) Ask(ctx context.Context, question string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.ask")
	defer span.End()

	if s.llm == nil {
		return "", fmt.Errorf("advisor unavailable: no LLM configured")
	}

	records, err := s.gatherContext(ctx, ExtractSymbols(question))
	if err != nil {
		log.Printf("failed to gather prediction context: %v", err)
	}

	prompt := BuildSystemPrompt(FormatPredictionContext(records))
	reply, err := s.callLLM(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt),
		openai.UserMessage(question),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("advisor unavailable: %w", err)
	}
	return reply, nil
}

func (s *AdvisorService) gatherContext(ctx context.Context, symbols []string) ([]*domain.PredictionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.gather-context")
	defer span.End()

	if len(symbols) > 0 {
		var records []*domain.PredictionRecord
		for _, sym := range symbols {
			record, err := s.predictions.Predict(ctx, sym)
			if err != nil {
				log.Printf("prediction unavailable for %s: %v", sym, err)
				continue
			}
			records = append(records, record)
		}
		return records, nil
	}

	rec, err := s.predictions.TopRecommendations(ctx, 3)
	if err != nil {
		return nil, err
	}
	records := append([]*domain.PredictionRecord{}, rec.Buys...)
	return append(records, rec.Sells...), nil
}

func (s *AdvisorService) callLLM(
	ctx context.Context,
	messages []openai.ChatCompletionMessageParamUnion,
) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.llm-call")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", s.model),
		attribute.Int("llm.message_count", len(messages)),
	)

	completion, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	reply := completion.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
