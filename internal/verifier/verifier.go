package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wikifactslab/wikifacts/internal/llm"
)

const systemPrompt = "You are solving a factual verification task.\n" +
	"You will be given a factual statement.\n" +
	"Your task is to verify whether the statement is true, false, or uncertain based on your knowledge.\n" +
	"Respond strictly with one of the following: \"yes\" (if it is true), \"no\" (if it is false), or \"i don't know\" (if you are not sure)."

const contextPreamble = "Use the following reference passages when they are relevant:"

const (
	defaultMaxAttempts = 3
	defaultMaxTokens   = 64
	defaultTopP        = 0.9
)

// Label is a parsed verification verdict.
type Label string

const (
	LabelYes     Label = "yes"
	LabelNo      Label = "no"
	LabelUnknown Label = "i don't know"
)

// ParseLabel maps a raw model reply onto a Label. Matching is substring
// based and case insensitive. Abstentions are checked before "no"
// because "i don't know" itself contains "no".
func ParseLabel(raw string) Label {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(text, "i don't know"),
		strings.Contains(text, "i don’t know"),
		strings.Contains(text, "i do not know"):
		return LabelUnknown
	case strings.Contains(text, "yes"):
		return LabelYes
	case strings.Contains(text, "no"):
		return LabelNo
	default:
		return LabelUnknown
	}
}

// Verdict is a single verified fact with the raw reply kept for auditing.
type Verdict struct {
	Label     Label
	Raw       string
	Usage     llm.Usage
	LatencyMs int64
	Attempts  int
}

type Option func(*Verifier)

func WithMaxAttempts(n int) Option {
	return func(v *Verifier) {
		if v == nil || n <= 0 {
			return
		}
		v.maxAttempts = n
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(v *Verifier) {
		if v == nil || d <= 0 {
			return
		}
		v.retryInterval = d
	}
}

// Verifier asks a provider whether a factual statement is correct.
type Verifier struct {
	provider      llm.Provider
	maxAttempts   int
	retryInterval time.Duration
}

func New(provider llm.Provider, opts ...Option) *Verifier {
	v := &Verifier{
		provider:      provider,
		maxAttempts:   defaultMaxAttempts,
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify sends the fact, with optional context fragments, and parses the
// reply. Transient provider failures retry with exponential backoff up to
// the attempt budget; an exhausted budget yields LabelUnknown with the
// error attached.
func (v *Verifier) Verify(ctx context.Context, fact string, fragments []string) (*Verdict, error) {
	if v == nil || v.provider == nil {
		return nil, errors.New("verifier: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("verifier: nil context")
	}
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return nil, errors.New("verifier: empty fact")
	}

	req := &llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: buildPrompt(fact, fragments)}},
		MaxTokens:   defaultMaxTokens,
		Temperature: 0,
		TopP:        defaultTopP,
	}

	attempts := 0
	var resp *llm.Response
	operation := func() error {
		attempts++
		r, err := v.provider.Complete(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(newVerifyBackOff(v.retryInterval), uint64(v.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return &Verdict{Label: LabelUnknown, Attempts: attempts},
			fmt.Errorf("verifier: %w", err)
	}

	return &Verdict{
		Label:     ParseLabel(resp.Text),
		Raw:       strings.TrimSpace(resp.Text),
		Usage:     resp.Usage,
		LatencyMs: resp.LatencyMs,
		Attempts:  attempts,
	}, nil
}

func buildPrompt(fact string, fragments []string) string {
	question := fmt.Sprintf("Is the following statement factually correct: %q? Answer only with \"yes\", \"no\", or \"i don't know\".", fact)
	if len(fragments) == 0 {
		return question
	}

	var sb strings.Builder
	sb.WriteString(contextPreamble)
	sb.WriteString("\n\n")
	for i, frag := range fragments {
		frag = strings.TrimSpace(frag)
		if frag == "" {
			continue
		}
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, frag)
	}
	sb.WriteString(question)
	return sb.String()
}

func newVerifyBackOff(interval time.Duration) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	return bo
}
