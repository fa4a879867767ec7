package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const (
	defaultClaudeModel   = "claude-sonnet-4-5-20250929"
	claudeRetryMax       = 3
	claudeRetryBase      = time.Second
	claudeDefaultMaxToks = 1024

	claudeVersionHeader = "2023-06-01"
)

type ClaudeProvider struct {
	client    anthropic.Client
	model     string
	retryMax  int
	retryBase time.Duration
}

func NewClaudeProvider(apiKey, baseURL, model string) *ClaudeProvider {
	opts := make([]option.RequestOption, 0, 4)
	if v := strings.TrimSpace(apiKey); v != "" {
		opts = append(opts, option.WithAPIKey(v))
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		opts = append(opts, option.WithBaseURL(claudeBaseURL(v)))
	}
	// Retry is handled here so that backoff respects the caller's context.
	opts = append(opts, option.WithMaxRetries(0))
	opts = append(opts, option.WithHeader("anthropic-version", claudeVersionHeader))

	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultClaudeModel
	}

	return &ClaudeProvider{
		client:    anthropic.NewClient(opts...),
		model:     m,
		retryMax:  claudeRetryMax,
		retryBase: claudeRetryBase,
	}
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

func (p *ClaudeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil {
		return nil, errors.New("llm: claude: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("llm: claude: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = claudeDefaultMaxToks
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  toClaudeMessages(req.Messages),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.TopP != 0 {
		params.TopP = param.NewOpt(req.TopP)
	}

	start := time.Now()
	msg, err := p.doWithRetry(ctx, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return &Response{
		Text:       sb.String(),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
		LatencyMs: latency,
	}, nil
}

func (p *ClaudeProvider) doWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	for attempt := 0; ; attempt++ {
		msg, err := p.client.Messages.New(ctx, params)
		if err == nil {
			return msg, nil
		}
		if !isRetryableClaudeErr(err) || attempt >= p.retryMax {
			return nil, fmt.Errorf("llm: claude: %w", err)
		}
		if err := sleepWithContext(ctx, p.retryBase<<attempt); err != nil {
			return nil, err
		}
	}
}

func isRetryableClaudeErr(err error) bool {
	if err == nil {
		return false
	}

	var sdkErr *anthropic.Error
	if errors.As(err, &sdkErr) {
		return sdkErr.StatusCode == 429 || (sdkErr.StatusCode >= 500 && sdkErr.StatusCode <= 599)
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func claudeBaseURL(base string) string {
	base = strings.TrimSpace(strings.TrimRight(base, "/"))
	return strings.TrimSuffix(base, "/v1")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toClaudeMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		role := anthropic.MessageParamRoleUser
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}
	return out
}
