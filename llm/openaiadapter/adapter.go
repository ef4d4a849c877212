// Package openaiadapter wraps the OpenAI chat-completions SDK into the
// internal llm.Generator interface. It is deliberately thin: per the
// project's scope, SDK adapter shims are external collaborators, not
// part of the core the orchestrator tests against.
package openaiadapter

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/tangerg/deepresearch/llm"
)

// Adapter implements llm.Generator over a single OpenAI model.
type Adapter struct {
	client       openai.Client
	defaultModel string
}

// New builds an Adapter. apiKey may be empty to fall back to the
// OPENAI_API_KEY environment variable, matching the SDK's own default.
func New(apiKey, defaultModel string) *Adapter {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Adapter{
		client:       openai.NewClient(opts...),
		defaultModel: defaultModel,
	}
}

func (a *Adapter) model(opts llm.GenerateOptions) string {
	if opts.ModelID != "" {
		return opts.ModelID
	}
	return a.defaultModel
}

func (a *Adapter) messages(prompt string, opts llm.GenerateOptions) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(opts.SystemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(prompt))
	return msgs
}

func (a *Adapter) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (llm.GenerateResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:       a.model(opts),
		Messages:    a.messages(prompt, opts),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.GenerateResult{}, err
	}
	if len(resp.Choices) == 0 {
		return llm.GenerateResult{}, llm.ErrNoContent
	}

	choice := resp.Choices[0]
	return llm.GenerateResult{
		Text: choice.Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		FinishReason: mapFinishReason(string(choice.FinishReason)),
	}, nil
}

func (a *Adapter) GenerateStructured(ctx context.Context, prompt string, opts llm.GenerateOptions, target llm.StructuredTarget) (bool, llm.Usage, error) {
	result, err := a.Generate(ctx, prompt, opts)
	if err != nil {
		return false, llm.Usage{}, err
	}
	if err := target.UnmarshalRaw(result.Text); err != nil {
		return false, result.Usage, nil
	}
	return true, result.Usage, nil
}

func mapFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "stop":
		return llm.FinishStop
	case "length":
		return llm.FinishLength
	case "content_filter":
		return llm.FinishContentFilter
	default:
		return llm.FinishUnknown
	}
}

var _ llm.Generator = (*Adapter)(nil)
