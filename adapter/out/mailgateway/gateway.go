// Package mailgateway adapts the core's MailGateway port onto a concrete
// mailbox transport. The wire protocol itself (IMAP command framing,
// SEARCH/FETCH batching) is an external collaborator's concern (out of
// scope per the system's purpose statement) — this package owns only the
// boundary: dialing, the five port operations, and failure classification.
// A Dialer seam lets production wire in a real IMAP client without this
// package depending on one directly.
package mailgateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mailsieve/core/domain"
	out "mailsieve/core/port/out"
	"mailsieve/pkg/resilience"
)

// Conn is the narrow mailbox capability a Dialer must produce — exactly
// what Gateway needs, so any transport (real IMAP, a test fake) can back it.
type Conn interface {
	ListUnclassified(ctx context.Context, known []string, limit int) ([]out.RawMessage, error)
	Fetch(ctx context.Context, id string) (*out.RawMessage, error)
	LabelsOf(ctx context.Context, ids []string) (map[string][]string, error)
	AddLabel(ctx context.Context, id, label string) error
	RemoveLabel(ctx context.Context, id, label string) error
	Close() error
}

// Dialer establishes a Conn to the configured mailbox.
type Dialer func(ctx context.Context) (Conn, error)

// Gateway is the circuit-breaker-wrapped out.MailGateway implementation.
// Every operation dials fresh (or reuses a cached Conn if the Dialer
// chooses to pool internally) and every transient failure trips the
// breaker rather than the core's own retry logic.
type Gateway struct {
	dial    Dialer
	breaker *resilience.CircuitBreaker
	log     zerolog.Logger
}

// NewGateway wires a Dialer behind a circuit breaker, grounded on the
// teacher's pattern of wrapping every outbound provider call in a breaker
// before the adapter returns its result to the core.
func NewGateway(dial Dialer, log zerolog.Logger) *Gateway {
	return &Gateway{
		dial:    dial,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("mail-gateway")),
		log:     log.With().Str("component", "mail_gateway").Logger(),
	}
}

func (g *Gateway) withConn(ctx context.Context, op string, fn func(Conn) error) error {
	err := g.breaker.Execute(func() error {
		dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
		conn, dialErr := g.dial(dialCtx)
		cancel()
		if dialErr != nil {
			return out.NewTransientGatewayError(op, dialErr)
		}
		defer conn.Close()
		return fn(conn)
	})
	if err == nil {
		return nil
	}
	if resilience.IsOpen(err) {
		g.log.Warn().Str("op", op).Msg("mail gateway circuit open, aborting batch")
		return out.NewFatalGatewayError(op, err)
	}
	return err
}

// ListUnclassified implements out.MailGateway.
func (g *Gateway) ListUnclassified(ctx context.Context, known domain.CategorySet, limit int) ([]out.RawMessage, error) {
	var result []out.RawMessage
	err := g.withConn(ctx, "list_unclassified", func(c Conn) error {
		knownStrs := make([]string, 0, len(known))
		for cat := range known {
			knownStrs = append(knownStrs, string(cat))
		}
		msgs, err := c.ListUnclassified(ctx, knownStrs, limit)
		if err != nil {
			return out.NewTransientGatewayError("list_unclassified", err)
		}
		result = msgs
		return nil
	})
	return result, err
}

// Fetch implements out.MailGateway.
func (g *Gateway) Fetch(ctx context.Context, id string) (*out.RawMessage, error) {
	var result *out.RawMessage
	err := g.withConn(ctx, "fetch", func(c Conn) error {
		msg, err := c.Fetch(ctx, id)
		if err != nil {
			return out.NewTransientGatewayError("fetch", err)
		}
		result = msg
		return nil
	})
	return result, err
}

// LabelsOf implements out.MailGateway.
func (g *Gateway) LabelsOf(ctx context.Context, ids []string) (map[string][]string, error) {
	var result map[string][]string
	err := g.withConn(ctx, "labels_of", func(c Conn) error {
		labels, err := c.LabelsOf(ctx, ids)
		if err != nil {
			return out.NewTransientGatewayError("labels_of", err)
		}
		result = labels
		return nil
	})
	return result, err
}

// AddLabel implements out.MailGateway.
func (g *Gateway) AddLabel(ctx context.Context, id string, category domain.Category) error {
	return g.withConn(ctx, "add_label", func(c Conn) error {
		if err := c.AddLabel(ctx, id, string(category)); err != nil {
			return out.NewTransientGatewayError("add_label", err)
		}
		return nil
	})
}

// RemoveLabel implements out.MailGateway.
func (g *Gateway) RemoveLabel(ctx context.Context, id string, category domain.Category) error {
	return g.withConn(ctx, "remove_label", func(c Conn) error {
		if err := c.RemoveLabel(ctx, id, string(category)); err != nil {
			return out.NewTransientGatewayError("remove_label", err)
		}
		return nil
	})
}

var _ out.MailGateway = (*Gateway)(nil)

// DialTimeout bounds how long a single Dialer call may take before the
// caller gives up and treats it as a transient failure.
const DialTimeout = 10 * time.Second
