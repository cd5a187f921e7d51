package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Recognized provider event types. Everything else is acknowledged without a
// ledger mutation.
const (
	EventTypeCheckoutCompleted = "checkout.session.completed"
	EventTypeChargeRefunded    = "charge.refunded"
	EventTypePaymentFailed     = "payment_intent.payment_failed"
)

// ProviderEvent is the parsed webhook envelope: the provider-assigned event
// id (the dedup key), the event type, and the raw data object.
type ProviderEvent struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Object json.RawMessage `json:"-"`
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes the envelope without trusting anything beyond its
// shape. Payloads must already be signature-verified.
func ParseEvent(payload []byte) (*ProviderEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	id := strings.TrimSpace(env.ID)
	eventType := strings.TrimSpace(env.Type)
	if id == "" || eventType == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrMalformedEnvelope)
	}
	return &ProviderEvent{ID: id, Type: eventType, Object: env.Data.Object}, nil
}

// CheckoutMetadata is the session metadata written at checkout-session
// creation time by the storefront. Provider metadata values arrive as
// strings.
type CheckoutMetadata struct {
	UserID  string `json:"user_id" validate:"required,number"`
	Credits string `json:"credits" validate:"required,number"`
}

type dataObject struct {
	Metadata CheckoutMetadata `json:"metadata"`
}

var metadataValidator = validator.New()

// ExtractCheckoutMetadata pulls and validates {user_id, credits} from the
// event's data object. Returns ErrInvalidMetadata for anything unusable so
// the dispatcher leaves the event unprocessed for redelivery.
func ExtractCheckoutMetadata(object json.RawMessage) (uint, int64, error) {
	if len(object) == 0 {
		return 0, 0, fmt.Errorf("%w: empty data object", ErrInvalidMetadata)
	}
	var obj dataObject
	if err := json.Unmarshal(object, &obj); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if err := metadataValidator.Struct(obj.Metadata); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	userID, err := strconv.ParseUint(obj.Metadata.UserID, 10, 32)
	if err != nil || userID == 0 {
		return 0, 0, fmt.Errorf("%w: bad user_id %q", ErrInvalidMetadata, obj.Metadata.UserID)
	}
	credits, err := strconv.ParseInt(obj.Metadata.Credits, 10, 64)
	if err != nil || credits <= 0 {
		return 0, 0, fmt.Errorf("%w: bad credits %q", ErrInvalidMetadata, obj.Metadata.Credits)
	}
	return uint(userID), credits, nil
}
