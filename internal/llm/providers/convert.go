package providers

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/types"
)

// Config describes one provider-backed client.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// toContentMessages converts our messages to the langchaingo schema.
func toContentMessages(msgs []llm.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llms.TextParts(toChatMessageType(m.Role), m.Content))
	}
	return out
}

func toChatMessageType(role llm.Role) llms.ChatMessageType {
	switch role {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAI:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// toCallOptions translates request knobs into langchaingo call options.
func toCallOptions(req llm.Request) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

// toStreamingCallOptions is toCallOptions plus a streaming callback.
func toStreamingCallOptions(req llm.Request, fn func(ctx context.Context, chunk []byte) error) []llms.CallOption {
	return append(toCallOptions(req), llms.WithStreamingFunc(fn))
}

// fromContentResponse converts a langchaingo response, rejecting responses
// with no choices.
func fromContentResponse(provider string, resp *llms.ContentResponse) (*llm.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, types.NewError(types.LLM_RESPONSE_INVALID,
			provider+" returned no choices")
	}
	choice := resp.Choices[0]
	return &llm.Response{
		Content:    choice.Content,
		StopReason: choice.StopReason,
	}, nil
}

// wrapRequestErr normalizes provider request failures. Failed requests can
// be reissued, so they carry the retryable mark; auth and parse errors do not.
func wrapRequestErr(provider string, err error) error {
	werr := types.WrapError(types.LLM_REQUEST_FAILED, provider+" request failed", err)
	werr.Retryable = true
	return werr
}

// wrapStreamErr normalizes provider streaming failures.
func wrapStreamErr(provider string, err error) error {
	werr := types.WrapError(types.LLM_STREAM_FAILED, provider+" stream failed", err)
	werr.Retryable = true
	return werr
}

// streamRequest runs a streaming GenerateContent against any langchaingo
// model, fanning chunks into a channel. All four providers share this loop.
func streamRequest(ctx context.Context, provider string, model llms.Model, req llm.Request) (<-chan llm.Chunk, error) {
	chunks := make(chan llm.Chunk, 16)

	messages := toContentMessages(req.Messages)
	opts := toStreamingCallOptions(req, func(ctx context.Context, chunk []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunks <- llm.Chunk{Delta: string(chunk)}:
			return nil
		}
	})

	go func() {
		defer close(chunks)
		if _, err := model.GenerateContent(ctx, messages, opts...); err != nil {
			select {
			case chunks <- llm.Chunk{Err: wrapStreamErr(provider, err)}:
			case <-ctx.Done():
			}
		}
	}()

	return chunks, nil
}

// completeRequest runs a blocking GenerateContent against any langchaingo
// model.
func completeRequest(ctx context.Context, provider string, model llms.Model, req llm.Request) (*llm.Response, error) {
	resp, err := model.GenerateContent(ctx, toContentMessages(req.Messages), toCallOptions(req)...)
	if err != nil {
		return nil, wrapRequestErr(provider, err)
	}
	return fromContentResponse(provider, resp)
}
