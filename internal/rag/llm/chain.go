package llm

import (
	"context"
	"errors"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/pkg/logger_i"
)

// Chain tries each provider in order and returns the first successful
// completion. Which provider answered is logged, not surfaced to callers.
type Chain struct {
	providers []Provider
	logger    *logger_i.Logger
}

func NewChain(providers ...Provider) *Chain {
	kept := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Chain{
		providers: kept,
		logger:    logger_i.NewLogger("llm_chain"),
	}
}

func (c *Chain) Name() string {
	return "chain"
}

// Len reports how many usable providers the chain holds.
func (c *Chain) Len() int {
	return len(c.providers)
}

func (c *Chain) Generate(ctx context.Context, model string, systemPrompt string, messages []Message) (string, error) {
	log := c.logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY))

	var errs []error
	for _, p := range c.providers {
		answer, err := p.Generate(ctx, model, systemPrompt, messages)
		if err == nil {
			log.Debug("Completion served", "provider", p.Name())
			return answer, nil
		}
		log.Warn("Provider failed, trying next", "provider", p.Name(), "error", err.Error())
		errs = append(errs, err)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if len(errs) == 0 {
		return "", errors.New("no completion providers configured")
	}
	return "", errors.Join(errs...)
}
