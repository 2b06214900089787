package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	agentEntity "github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const moduleName = "llm"

// Candidate is one model the reasoner may ask, tried in order.
type Candidate struct {
	Provider string
	Model    string
	Chat     einoModel.ToolCallingChatModel
}

// Ref is the provider/model label used in logs.
func (c Candidate) Ref() string {
	return c.Provider + "/" + c.Model
}

// EinoReasoner asks a chat model for the next action. Retryable failures are
// retried on the same model; anything else moves to the next candidate.
type EinoReasoner struct {
	candidates   []Candidate
	systemPrompt string
	maxRetries   int
	backoff      time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

type ReasonerOption func(*EinoReasoner)

// WithSystemPrompt prepends prompt to every request.
func WithSystemPrompt(prompt string) ReasonerOption {
	return func(r *EinoReasoner) { r.systemPrompt = prompt }
}

// WithRetry sets how many extra attempts a retryable failure gets and the base backoff.
func WithRetry(maxRetries int, backoff time.Duration) ReasonerOption {
	return func(r *EinoReasoner) {
		if maxRetries >= 0 {
			r.maxRetries = maxRetries
		}
		if backoff >= 0 {
			r.backoff = backoff
		}
	}
}

// WithSleep replaces the backoff wait, used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ReasonerOption {
	return func(r *EinoReasoner) { r.sleep = sleep }
}

func NewEinoReasoner(candidates []Candidate, opts ...ReasonerOption) (*EinoReasoner, error) {
	if len(candidates) == 0 {
		return nil, errors.New("reasoner needs at least one model")
	}
	for i, c := range candidates {
		if c.Chat == nil {
			return nil, fmt.Errorf("model candidate %d (%s) has no chat model", i, c.Ref())
		}
	}
	r := &EinoReasoner{
		candidates: candidates,
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *EinoReasoner) Next(ctx context.Context, history []*agentEntity.ConversationTurn, specs []*tools.ToolSpec) (*agentEntity.Action, error) {
	msgs := ToMessages(r.systemPrompt, history)
	infos := ToToolInfos(specs)

	var errs []error
	for _, c := range r.candidates {
		msg, err := r.generate(ctx, c, msgs, infos)
		if err == nil {
			return FromMessage(msg), nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		logger.WarnX(moduleName, "model %s failed: %v", c.Ref(), err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("all model candidates failed: %w", errors.Join(errs...))
}

func (r *EinoReasoner) generate(ctx context.Context, c Candidate, msgs []*schema.Message, infos []*schema.ToolInfo) (*schema.Message, error) {
	chat := c.Chat
	if len(infos) > 0 {
		bound, err := c.Chat.WithTools(infos)
		if err != nil {
			return nil, entity.NewModelError(fmt.Errorf("bind tools: %w", err), c.Provider, c.Model)
		}
		chat = bound
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := r.backoff * time.Duration(1<<(attempt-1))
			logger.DebugX(moduleName, "retrying %s in %s (attempt %d)", c.Ref(), wait, attempt+1)
			if err := r.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
		msg, err := chat.Generate(ctx, msgs)
		if err == nil {
			if msg == nil {
				return nil, entity.NewModelError(errors.New("empty response"), c.Provider, c.Model)
			}
			return msg, nil
		}
		lastErr = entity.NewModelError(err, c.Provider, c.Model)
		var me *entity.ModelError
		if !errors.As(lastErr, &me) || !me.Reason.IsRetryable() || ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
