package session

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/agbru/fibnet/internal/config"
	"github.com/agbru/fibnet/internal/fibonacci"
	"github.com/agbru/fibnet/internal/protocol"
)

// Handler turns one request index into the response text. It holds no
// per-connection state and is shared by every session of a server.
type Handler struct {
	limit config.Limit
	calc  fibonacci.Calculator
	sem   *semaphore.Weighted
}

// NewHandler returns a Handler enforcing limit and computing with calc. A
// non-nil sem bounds how many computations run at once across sessions.
func NewHandler(limit config.Limit, calc fibonacci.Calculator, sem *semaphore.Weighted) *Handler {
	return &Handler{limit: limit, calc: calc, sem: sem}
}

// Limit returns the configured magnitude limit.
func (h *Handler) Limit() config.Limit { return h.limit }

// Validate checks n against the limit. When n is rejected it returns the
// error response text and false.
func (h *Handler) Validate(n int32) (string, Outcome, bool) {
	if h.limit.Allows(n) {
		return "", "", true
	}
	bound, _ := h.limit.Max()
	return protocol.LimitExceeded(bound).Text(), OutcomeLimitExceeded, false
}

// Compute returns the response text for an accepted index. Results that
// cannot fit a response frame are answered with an error response; when the
// digit estimate already rules the result out the computation is skipped.
// The only error returned is a cancellation of ctx.
func (h *Handler) Compute(ctx context.Context, n int32) (string, Outcome, error) {
	// The estimate is at most one digit off, so beyond MaxPayload digits
	// the text plus its newline cannot fit.
	if fibonacci.EstimateTextLen(n) > protocol.MaxPayload {
		return protocol.ResultTooLarge().Text(), OutcomeTooLarge, nil
	}

	if h.sem != nil {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return "", "", err
		}
		defer h.sem.Release(1)
	}

	v, err := h.calc.Calculate(ctx, n)
	if err != nil {
		return "", "", err
	}
	text := protocol.Success(v).Text()
	if len(text) > protocol.MaxPayload {
		return protocol.ResultTooLarge().Text(), OutcomeTooLarge, nil
	}
	return text, OutcomeOK, nil
}
