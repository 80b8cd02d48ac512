package openaiLLM

import (
	"context"
	"fmt"
	"sync"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/customHttpClient"
	"github.com/finsightai/finsight/internal/rag/llm"
	"github.com/finsightai/finsight/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type llmClient struct {
	client *openai.Client
}

var logger *logger_i.Logger
var openaiClient *llmClient
var once sync.Once

// GetOpenAIClient is the primary completion provider. The model is chosen per
// call, so the baseline, fine-tuned and distilled variants all route through
// the one client.
func GetOpenAIClient(apikey string) llm.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_openai")
		newOpenAIClient(apikey)
	})

	if openaiClient == nil {
		return nil
	}
	return &llmClient{client: openaiClient.client}
}

func newOpenAIClient(apikey string) {
	c := openai.NewClient(
		option.WithAPIKey(apikey),
		option.WithHTTPClient(customHttpClient.New()),
	)
	openaiClient = &llmClient{client: &c}
	logger.Info("OpenAI client created")
}

func (c *llmClient) Name() string {
	return "openai"
}

func (c *llmClient) Generate(ctx context.Context, model string, systemPrompt string, messages []llm.Message) (string, error) {
	log := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY), "model", model)

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    buildMessages(systemPrompt, messages),
		Temperature: openai.Float(config.ModelTemperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Error("Error generating completion from OpenAI", "error", err.Error())
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	answer := resp.Choices[0].Message.Content
	if answer == "" {
		return "", fmt.Errorf("openai returned an empty completion")
	}
	return answer, nil
}

func buildMessages(systemPrompt string, messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	out = append(out, openai.SystemMessage(systemPrompt))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
