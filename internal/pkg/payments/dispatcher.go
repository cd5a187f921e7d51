package payments

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/app/models"
	"github.com/resumeforge/ResumeForge/app/repository"
	"github.com/resumeforge/ResumeForge/internal/pkg/credits"
)

// Status is the terminal disposition of one webhook delivery.
type Status string

const (
	// StatusProcessed: first successful handling, possibly with zero
	// ledger effect for recognized no-op types.
	StatusProcessed Status = "processed"
	// StatusDuplicate: the event id was handled before; no mutation.
	StatusDuplicate Status = "duplicate"
	// StatusIgnored: unrecognized event type, acknowledged without effect.
	StatusIgnored Status = "ignored"
)

// Outcome reports how a delivery was resolved. Any error return from Handle
// means no terminal state was reached and the provider should redeliver
// (except authentication and envelope errors, which are permanent).
type Outcome struct {
	Status     Status `json:"status"`
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	NewBalance int64  `json:"new_balance,omitempty"`
}

// Archiver mirrors raw payloads to long-term storage. Implementations must
// not block webhook handling.
type Archiver interface {
	ArchivePayload(provider, eventID string, payload []byte)
}

// DispatcherConfig wires provider secrets and optional collaborators.
type DispatcherConfig struct {
	// Secrets maps a provider path segment to its webhook signing secret.
	Secrets map[string]string
	// Tolerance bounds the signature replay window; zero means the
	// default of five minutes.
	Tolerance time.Duration
	// Archiver, when set, receives every newly ingested payload.
	Archiver Archiver
}

// Dispatcher drives a verified webhook delivery through
// received -> verified -> (duplicate | new) -> processed | failed.
// "failed" is not terminal: the event stays ingested with processed_at null
// and the provider's redelivery reattempts it.
type Dispatcher struct {
	events    repository.WebhookEventRepository
	ledger    *credits.Ledger
	secrets   map[string]string
	tolerance time.Duration
	archiver  Archiver
	log       *logrus.Entry
}

// NewDispatcher creates a webhook dispatcher.
func NewDispatcher(events repository.WebhookEventRepository, ledger *credits.Ledger, cfg DispatcherConfig) *Dispatcher {
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &Dispatcher{
		events:    events,
		ledger:    ledger,
		secrets:   cfg.Secrets,
		tolerance: tolerance,
		archiver:  cfg.Archiver,
		log:       logrus.WithField("component", "webhook-dispatcher"),
	}
}

// Handle verifies, deduplicates, and processes one delivery. The payload
// must be the untouched request body; nothing is parsed before the
// signature check.
func (d *Dispatcher) Handle(ctx context.Context, provider string, payload []byte, signatureHeader string) (*Outcome, error) {
	secret, ok := d.secrets[provider]
	if !ok || secret == "" {
		return nil, ErrUnknownProvider
	}

	if err := VerifySignature(payload, signatureHeader, secret, d.tolerance); err != nil {
		d.log.WithField("provider", provider).Warn("webhook rejected: signature verification failed")
		return nil, err
	}

	event, err := ParseEvent(payload)
	if err != nil {
		d.log.WithField("provider", provider).Warn("webhook rejected: malformed envelope")
		return nil, err
	}

	created, stored, err := d.events.CreateIfNotExists(&models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return nil, err
	}

	logEntry := d.log.WithFields(logrus.Fields{
		"provider":   provider,
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	if !created {
		if stored.IsProcessed() {
			logEntry.Info("duplicate delivery, already processed")
			return &Outcome{Status: StatusDuplicate, EventID: event.ID, EventType: event.Type}, nil
		}
		// Ingested by an earlier delivery that never completed: reattempt.
		logEntry.Info("reattempting previously failed event")
	} else if d.archiver != nil {
		d.archiver.ArchivePayload(provider, event.ID, payload)
	}

	outcome, err := d.process(ctx, event, stored)
	if err != nil {
		if recErr := d.events.RecordProcessingError(stored.ID, err); recErr != nil {
			logEntry.WithError(recErr).Error("failed to record processing error")
		}
		logEntry.WithError(err).Warn("event left unprocessed for redelivery")
		return nil, err
	}
	return outcome, nil
}

func (d *Dispatcher) process(ctx context.Context, event *ProviderEvent, stored *models.WebhookEvent) (*Outcome, error) {
	switch event.Type {
	case EventTypeCheckoutCompleted:
		userID, amount, err := ExtractCheckoutMetadata(event.Object)
		if err != nil {
			return nil, err
		}
		newBalance, err := d.ledger.CreditForEvent(ctx, userID, amount, stored.ID, event.ID)
		if err != nil {
			return d.resolveMutationError(event, err)
		}
		return &Outcome{Status: StatusProcessed, EventID: event.ID, EventType: event.Type, NewBalance: newBalance}, nil

	case EventTypeChargeRefunded:
		userID, amount, err := ExtractCheckoutMetadata(event.Object)
		if err != nil {
			return nil, err
		}
		newBalance, err := d.ledger.RefundForEvent(ctx, userID, amount, stored.ID, event.ID)
		if err != nil {
			return d.resolveMutationError(event, err)
		}
		return &Outcome{Status: StatusProcessed, EventID: event.ID, EventType: event.Type, NewBalance: newBalance}, nil

	case EventTypePaymentFailed:
		// Recognized, but there is nothing to mutate: the customer was
		// never credited. Acknowledge so the provider stops retrying.
		if err := d.markNoOp(stored.ID); err != nil {
			return nil, err
		}
		return &Outcome{Status: StatusProcessed, EventID: event.ID, EventType: event.Type}, nil

	default:
		d.log.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Info("unrecognized event type acknowledged")
		if err := d.markNoOp(stored.ID); err != nil {
			return nil, err
		}
		return &Outcome{Status: StatusIgnored, EventID: event.ID, EventType: event.Type}, nil
	}
}

// resolveMutationError maps a lost mark-processed race to a duplicate
// success; everything else stays a retryable failure.
func (d *Dispatcher) resolveMutationError(event *ProviderEvent, err error) (*Outcome, error) {
	if errors.Is(err, repository.ErrEventAlreadyProcessed) {
		return &Outcome{Status: StatusDuplicate, EventID: event.ID, EventType: event.Type}, nil
	}
	return nil, err
}

func (d *Dispatcher) markNoOp(eventRowID uint) error {
	err := d.events.MarkProcessed(eventRowID, nil)
	if err != nil && errors.Is(err, repository.ErrEventAlreadyProcessed) {
		return nil
	}
	return err
}
