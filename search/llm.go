package search

import (
	"context"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/ratelimit"
)

// Pod limiter defaults for the shared LLM API.
const (
	llmAPIName        = "llm"
	llmRequestsPerMin = 120
	llmAcquireTimeout = time.Hour
)

// LLM is the narrow completion surface the search operations use. The
// production implementation adapts a langchaingo model; tests use canned
// fakes.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LangchainLLM adapts a langchaingo model to the LLM interface, gating every
// call through the shared LLM pod limiter.
type LangchainLLM struct {
	model   llms.Model
	limiter *ratelimit.PodLimiter
}

// NewLangchainLLM wraps a langchaingo model.
func NewLangchainLLM(model llms.Model) *LangchainLLM {
	return &LangchainLLM{
		model:   model,
		limiter: ratelimit.ForAPI(llmAPIName, llmRequestsPerMin, time.Minute, llmAcquireTimeout),
	}
}

// Complete runs a single-prompt completion.
func (l *LangchainLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	completion, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt)
	if err != nil {
		return "", common.WrapError(common.KindProviderTransient, err, "llm completion failed")
	}
	return strings.TrimSpace(completion), nil
}
