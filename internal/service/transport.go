package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"inboxpilot/internal/config"

	"github.com/badoux/checkmail"
	"gopkg.in/gomail.v2"
)

// Transport delivers one rendered email. It makes a single attempt and does
// not retry.
type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}

// sendWithTimeout runs the transport under timeout. A transport that ignores
// its context is abandoned when the timeout fires. Callers pass a context
// that is not cancelled on shutdown, so a started send is never cut short.
func sendWithTimeout(ctx context.Context, transport Transport, timeout time.Duration, to, subject, body string) error {
	sendCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- transport.Send(sendCtx, to, subject, body)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return ErrSendTimeout
		}
		return err
	case <-sendCtx.Done():
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return ErrSendTimeout
		}
		return fmt.Errorf("send cancelled: %w", sendCtx.Err())
	}
}

// SMTPTransport sends mail through a configured SMTP relay
type SMTPTransport struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

// NewSMTPTransport creates a transport from SMTP configuration
func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send validates the recipient address and hands the message to the relay.
// gomail has no context support, so cancellation is enforced by the caller's
// timeout around Send.
func (t *SMTPTransport) Send(ctx context.Context, to, subject, body string) error {
	if err := checkmail.ValidateFormat(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.fromEmail, t.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := t.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}

	return nil
}

// SimulatedTransport fakes delivery with random latency and a configurable
// success rate. Used in development and load tests.
type SimulatedTransport struct {
	successRate float64 // 0.0 to 1.0
	maxLatency  time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// NewSimulatedTransport creates a simulated transport. successRate is
// clamped to [0, 1].
func NewSimulatedTransport(successRate float64, maxLatency time.Duration) *SimulatedTransport {
	if successRate < 0.0 {
		successRate = 0.0
	}
	if successRate > 1.0 {
		successRate = 1.0
	}

	return &SimulatedTransport{
		successRate: successRate,
		maxLatency:  maxLatency,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var simulatedFailures = []string{
	"connection refused",
	"mailbox unavailable",
	"rate limit exceeded",
	"service temporarily unavailable",
	"message rejected as spam",
}

// Send waits a random latency then succeeds with the configured probability
func (t *SimulatedTransport) Send(ctx context.Context, to, subject, body string) error {
	t.mu.Lock()
	var latency time.Duration
	if t.maxLatency > 0 {
		latency = time.Duration(t.rand.Int63n(int64(t.maxLatency)))
	}
	success := t.rand.Float64() < t.successRate
	reason := simulatedFailures[t.rand.Intn(len(simulatedFailures))]
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(latency):
	}

	if !success {
		return fmt.Errorf("failed to send email to %s: %s", to, reason)
	}
	return nil
}

// NewTransport builds the transport selected by configuration
func NewTransport(cfg *config.Config) Transport {
	if cfg.Transport.Kind == config.TransportSimulated {
		return NewSimulatedTransport(cfg.Transport.SuccessRate, 200*time.Millisecond)
	}
	return NewSMTPTransport(cfg.SMTP)
}
