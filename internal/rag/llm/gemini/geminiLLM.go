package gemini

import (
	"context"
	"fmt"
	"sync"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/rag/llm"
	"github.com/finsightai/finsight/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client    *genai.Client
	modelName string
}

var logger *logger_i.Logger
var geminiClient *llmClient
var once sync.Once

var temperature float32 = float32(config.ModelTemperature)

// GetGeminiClient is the fallback provider. It always answers with its own
// configured model, requested OpenAI model names do not map onto Gemini.
func GetGeminiClient(ctx context.Context, modelName string, apikey string) llm.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		newGeminiClient(ctx, modelName, apikey)
	})

	if geminiClient == nil {
		return nil
	}
	return &llmClient{client: geminiClient.client, modelName: geminiClient.modelName}
}

func newGeminiClient(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
	}
	if c != nil {
		geminiClient = &llmClient{client: c, modelName: modelName}
		logger.Info("Gemini client created", "model", modelName)
		go closeClient(ctx, geminiClient)
	}
}

func (c *llmClient) Name() string {
	return "gemini"
}

func (c *llmClient) Generate(ctx context.Context, model string, systemPrompt string, messages []llm.Message) (string, error) {
	log := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY))
	if model != c.modelName {
		log.Debug("Substituting configured Gemini model", "requested", model, "using", c.modelName)
	}

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		Temperature: &temperature,
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, buildContents(messages), contentConfig)
	if err != nil {
		log.Error("Error generating completion from Gemini", "error", err.Error())
		return "", err
	}

	answer := result.Text()
	if answer == "" {
		return "", fmt.Errorf("gemini returned an empty completion")
	}
	return answer, nil
}

func buildContents(messages []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents
}

func closeClient(ctx context.Context, llm *llmClient) {
	<-ctx.Done()
	logger.Info("Closing Gemini client")
	llm.client = nil
	llm.modelName = ""
}
