package propagation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"engineroom/internal/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// WebhookPayload is the JSON body POSTed to a consumer's webhook when a
// change that affects it propagates.
type WebhookPayload struct {
	ChangeID      string        `json:"change_id"`
	ConstructType ConstructType `json:"construct_type"`
	ConstructKey  string        `json:"construct_key"`
	ChangeType    ChangeType    `json:"change_type"`
	ChangeSummary string        `json:"change_summary,omitempty"`
	ChangedAt     time.Time     `json:"changed_at"`
	Hints         []Hint        `json:"migration_hints,omitempty"`
}

// Report summarizes one propagation run.
type Report struct {
	ChangeID  string   `json:"change_id"`
	Notified  int      `json:"notified"`
	Delivered int      `json:"delivered"`
	Failures  []string `json:"failures,omitempty"`
	Status    Status   `json:"status"`
}

// Propagator fans a recorded change out to its affected consumers:
// one notification row per consumer, plus a webhook POST for consumers
// that registered one.
type Propagator struct {
	registry      Registry
	client        *http.Client
	maxConcurrent int
}

// PropagatorOption configures a Propagator.
type PropagatorOption func(*Propagator)

// WithWebhookTimeout bounds each webhook POST.
func WithWebhookTimeout(d time.Duration) PropagatorOption {
	return func(p *Propagator) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithMaxConcurrent caps how many consumers are notified in parallel.
func WithMaxConcurrent(n int) PropagatorOption {
	return func(p *Propagator) {
		if n > 0 {
			p.maxConcurrent = n
		}
	}
}

// WithHTTPClient replaces the webhook client, mainly for tests.
func WithHTTPClient(client *http.Client) PropagatorOption {
	return func(p *Propagator) {
		if client != nil {
			p.client = client
		}
	}
}

// NewPropagator builds a propagator over a registry.
func NewPropagator(registry Registry, opts ...PropagatorOption) *Propagator {
	p := &Propagator{
		registry:      registry,
		client:        &http.Client{Timeout: 10 * time.Second},
		maxConcurrent: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Propagate notifies every affected consumer of a change. With notifyOnly
// set, notification rows are written but no webhooks fire. A webhook
// delivery failure marks that consumer in the report but never aborts the
// run; the change only fails outright when notifications cannot be
// persisted at all.
func (p *Propagator) Propagate(ctx context.Context, change *Change, notifyOnly bool) (*Report, error) {
	if change == nil {
		return nil, fmt.Errorf("nil change")
	}

	start := time.Now()
	report := &Report{ChangeID: change.ID}

	if len(change.AffectedConsumers) == 0 {
		report.Status = StatusSkipped
		if err := p.registry.UpdateChangeStatus(change.ID, StatusSkipped); err != nil {
			return nil, fmt.Errorf("failed to mark change %s skipped: %w", change.ID, err)
		}
		logging.Propagation("Change %s has no affected consumers; skipped", change.ID)
		return report, nil
	}

	if err := p.registry.UpdateChangeStatus(change.ID, StatusInProgress); err != nil {
		return nil, fmt.Errorf("failed to mark change %s in progress: %w", change.ID, err)
	}

	hints := Hints(change)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)

	for _, consumerID := range change.AffectedConsumers {
		consumerID := consumerID
		g.Go(func() error {
			consumer, err := p.registry.GetConsumer(consumerID)
			if err != nil {
				mu.Lock()
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", consumerID, err))
				mu.Unlock()
				logging.PropagationWarn("Affected consumer %s not found for change %s: %v", consumerID, change.ID, err)
				return nil
			}

			n := &Notification{
				ID:          uuid.New().String(),
				ChangeID:    change.ID,
				ConsumerID:  consumer.ID,
				NotifiedAt:  time.Now().UTC(),
				ActionTaken: ActionPending,
			}
			if err := p.registry.SaveNotification(n); err != nil {
				// A notification row we cannot write is a lost event, not a
				// degraded delivery. Fail the run.
				return fmt.Errorf("failed to save notification for consumer %s: %w", consumer.Name, err)
			}

			mu.Lock()
			report.Notified++
			mu.Unlock()

			if notifyOnly || consumer.WebhookURL == "" {
				return nil
			}

			if err := p.deliver(gctx, consumer, change, hints); err != nil {
				mu.Lock()
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", consumer.Name, err))
				mu.Unlock()
				return nil
			}

			mu.Lock()
			report.Delivered++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		report.Status = StatusFailed
		if statusErr := p.registry.UpdateChangeStatus(change.ID, StatusFailed); statusErr != nil {
			logging.PropagationWarn("Failed to mark change %s failed: %v", change.ID, statusErr)
		}
		return report, err
	}

	report.Status = StatusCompleted
	if err := p.registry.UpdateChangeStatus(change.ID, StatusCompleted); err != nil {
		return report, fmt.Errorf("failed to mark change %s completed: %w", change.ID, err)
	}

	logging.Propagation("Propagated change %s: %d notified, %d webhooks delivered, %d failures",
		change.ID, report.Notified, report.Delivered, len(report.Failures))
	logging.Audit().ChangePropagated(change.ID, report.Notified, time.Since(start).Milliseconds())

	return report, nil
}

func (p *Propagator) deliver(ctx context.Context, consumer *Consumer, change *Change, hints []Hint) error {
	payload := WebhookPayload{
		ChangeID:      change.ID,
		ConstructType: change.ConstructType,
		ConstructKey:  change.ConstructKey,
		ChangeType:    change.ChangeType,
		ChangeSummary: change.ChangeSummary,
		ChangedAt:     change.ChangedAt,
		Hints:         hints,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, consumer.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		logging.Audit().WebhookNotified(consumer.Name, consumer.WebhookURL, false, err.Error(), time.Since(start).Milliseconds())
		return fmt.Errorf("webhook POST failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("webhook returned %s", resp.Status)
		logging.Audit().WebhookNotified(consumer.Name, consumer.WebhookURL, false, err.Error(), time.Since(start).Milliseconds())
		return err
	}

	logging.Audit().WebhookNotified(consumer.Name, consumer.WebhookURL, true, "", time.Since(start).Milliseconds())
	return nil
}
