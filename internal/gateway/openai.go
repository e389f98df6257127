package gateway

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingClient turns a text rendering of a trade into a vector.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// LLMClient produces free-form text from a system and user prompt.
type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type openAIEmbeddingClient struct {
	client openai.Client
	model  string
	dims   int64
}

func NewOpenAIEmbeddingClient(apiKey, model string, dims int) EmbeddingClient {
	return &openAIEmbeddingClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		dims:   int64(dims),
	}
}

func (c *openAIEmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(c.dims),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

type openAIChatClient struct {
	client openai.Client
	model  string
}

func NewOpenAIChatClient(apiKey, model string) LLMClient {
	return &openAIChatClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *openAIChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
