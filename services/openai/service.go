package openaisvc

import (
	"context"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/trezcool/darasa/core"
)

var errNoChoices = errors.New("completion returned no choices")

type service struct {
	client     *openai.Client
	deployment string
	maxTokens  int
}

var _ core.ChatService = (*service)(nil)

// NewService returns a core.ChatService backed by an Azure OpenAI deployment.
// Every completion runs in JSON mode; callers are expected to prompt for JSON
// and parse the raw bytes themselves.
func NewService(conf *core.Config) core.ChatService {
	cfg := openai.DefaultAzureConfig(conf.OpenAI.APIKey, conf.OpenAI.Endpoint)
	if conf.OpenAI.APIVersion != "" {
		cfg.APIVersion = conf.OpenAI.APIVersion
	}
	deployment := conf.OpenAI.Deployment
	cfg.AzureModelMapperFunc = func(string) string { return deployment }

	return &service{
		client:     openai.NewClientWithConfig(cfg),
		deployment: deployment,
	}
}

func (svc *service) Complete(ctx context.Context, req core.ChatRequest) ([]byte, error) {
	ccReq := openai.ChatCompletionRequest{
		Model: svc.deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := svc.client.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		status := 0
		if apiErr, ok := err.(*openai.APIError); ok {
			status = apiErr.HTTPStatusCode
		}
		return nil, core.NewUpstreamError("openai", status, err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewUpstreamError("openai", 0, errNoChoices)
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
