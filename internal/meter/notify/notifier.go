package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"prepaid-meter/internal/meter/application"
	"prepaid-meter/internal/observability/metrics"
)

// DaysEstimator reports the estimated days of credit left.
type DaysEstimator func() (days float64, ok bool)

// LowCreditNotifier sends a message when the balance drops below a threshold.
// It fires once per crossing; the balance must climb back to the threshold
// before it can fire again.
type LowCreditNotifier struct {
	threshold      float64
	channel        Channel
	template       *Template
	logger         *log.Logger
	days           DaysEstimator
	requestTimeout time.Duration
	wg             sync.WaitGroup
}

// Option configures the notifier.
type Option func(*LowCreditNotifier)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *LowCreditNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithTemplate overrides the message template.
func WithTemplate(template *Template) Option {
	return func(n *LowCreditNotifier) {
		if template != nil {
			n.template = template
		}
	}
}

// WithDaysEstimator includes a days-remaining estimate in messages.
func WithDaysEstimator(days DaysEstimator) Option {
	return func(n *LowCreditNotifier) {
		n.days = days
	}
}

// WithRequestTimeout bounds each delivery.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *LowCreditNotifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// NewLowCreditNotifier constructs a notifier.
func NewLowCreditNotifier(threshold float64, channel Channel, opts ...Option) (*LowCreditNotifier, error) {
	if channel == nil {
		return nil, errors.New("low credit notifier: nil channel")
	}
	if threshold <= 0 {
		return nil, errors.New("low credit notifier: threshold must be positive")
	}
	tpl, err := NewTemplate("")
	if err != nil {
		return nil, err
	}
	n := &LowCreditNotifier{
		threshold:      threshold,
		channel:        channel,
		template:       tpl,
		logger:         log.Default(),
		requestTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Crossed reports whether a change moved the balance below the threshold.
func (n *LowCreditNotifier) Crossed(event application.LedgerChanged) bool {
	return event.PreviousBalance >= n.threshold && event.Balance < n.threshold
}

// HandleLedgerChanged sends the message in the background when the threshold is crossed.
func (n *LowCreditNotifier) HandleLedgerChanged(_ context.Context, event application.LedgerChanged) error {
	if n == nil || !n.Crossed(event) {
		return nil
	}
	content, err := n.template.Render(n.templateData(event))
	if err != nil {
		return err
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.requestTimeout)
		defer cancel()
		if err := n.channel.Send(ctx, content); err != nil {
			metrics.IncNotification(metrics.ResultError)
			n.logger.Printf("low credit notifier: send error: %v", err)
			return
		}
		metrics.IncNotification(metrics.ResultSuccess)
		n.logger.Printf("low credit notifier: sent (balance=%.2f threshold=%.2f)", event.Balance, n.threshold)
	}()
	return nil
}

// Close waits for in-flight deliveries.
func (n *LowCreditNotifier) Close() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *LowCreditNotifier) templateData(event application.LedgerChanged) TemplateData {
	data := TemplateData{
		Balance:    formatFloat(event.Balance),
		Threshold:  formatFloat(n.threshold),
		Trigger:    fmt.Sprintf("%s %s", event.Kind, event.Op),
		OccurredAt: event.OccurredAt.UTC().Format(time.RFC3339),
	}
	if n.days != nil {
		if days, ok := n.days(); ok {
			data.DaysRemaining = fmt.Sprintf("%.1f", days)
		}
	}
	return data
}

func formatFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
