package openai

import (
    "context"
    "encoding/json"
    "fmt"
    "strings"

    domain "github.com/bryanwahyu/naturelens/internal/domain/recognition"
    "github.com/bryanwahyu/naturelens/internal/infra/ai/prompt"
    "github.com/sashabaranov/go-openai"
)

const maxTokens = 1024

type Client struct {
    *openai.Client
    Model string
}

func NewClient(apiKey, model string) *Client {
    return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// Classify sends exactly one vision request for the given image URL and
// returns the validated classification. The URL must be dereferenceable by
// the provider, so pass a presigned URL, never an internal address.
func (c *Client) Classify(ctx context.Context, imageURL string) (domain.Classification, error) {
    model := c.Model
    if model == "" {
        model = "gpt-4o-mini"
    }
    req := openai.ChatCompletionRequest{
        Model: model,
        ResponseFormat: &openai.ChatCompletionResponseFormat{
            Type: openai.ChatCompletionResponseFormatTypeJSONObject,
        },
        Messages: []openai.ChatCompletionMessage{
            {
                Role: openai.ChatMessageRoleUser,
                MultiContent: []openai.ChatMessagePart{
                    {Type: openai.ChatMessagePartTypeText, Text: prompt.GetSpeciesPrompt()},
                    {Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
                },
            },
        },
    }
    // For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
    if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
        req.MaxCompletionTokens = maxTokens
    } else {
        req.MaxTokens = maxTokens
    }

    resp, err := c.CreateChatCompletion(ctx, req)
    if err != nil {
        return domain.Classification{}, fmt.Errorf("failed to create chat completion: %w", err)
    }
    if len(resp.Choices) == 0 {
        return domain.Classification{}, fmt.Errorf("%w: empty response", domain.ErrClassificationParse)
    }

    return ParseClassification(resp.Choices[0].Message.Content)
}

// ParseClassification turns the model's raw text into a typed classification.
// The text is untrusted: it must parse as JSON and pass field validation
// before it becomes a value anyone persists.
func ParseClassification(raw string) (domain.Classification, error) {
    var cls domain.Classification
    if err := json.Unmarshal([]byte(raw), &cls); err != nil {
        return domain.Classification{}, fmt.Errorf("%w: %v", domain.ErrClassificationParse, err)
    }
    if err := cls.Validate(); err != nil {
        return domain.Classification{}, err
    }
    return cls, nil
}
