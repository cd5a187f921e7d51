package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestVerifySignatureValid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_test"

	header := ComputeSignatureHeader(payload, secret, time.Now())
	if err := VerifySignature(payload, header, secret, DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected signature to validate, got %v", err)
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	secret := "whsec_test"
	header := ComputeSignatureHeader([]byte(`{"a":1}`), secret, time.Now())

	err := VerifySignature([]byte(`{"a":2}`), header, secret, DefaultSignatureTolerance)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"a":1}`)
	header := ComputeSignatureHeader(payload, "whsec_a", time.Now())

	err := VerifySignature(payload, header, "whsec_b", DefaultSignatureTolerance)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"a":1}`)
	secret := "whsec_test"
	header := ComputeSignatureHeader(payload, secret, time.Now().Add(-10*time.Minute))

	err := VerifySignature(payload, header, secret, 5*time.Minute)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for stale timestamp, got %v", err)
	}
}

func TestVerifySignatureRejectsFutureTimestamp(t *testing.T) {
	payload := []byte(`{"a":1}`)
	secret := "whsec_test"
	header := ComputeSignatureHeader(payload, secret, time.Now().Add(10*time.Minute))

	err := VerifySignature(payload, header, secret, 5*time.Minute)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for future timestamp, got %v", err)
	}
}

func TestVerifySignatureMalformedHeaders(t *testing.T) {
	payload := []byte(`{"a":1}`)
	secret := "whsec_test"

	tests := []struct {
		name   string
		header string
	}{
		{name: "empty", header: ""},
		{name: "no timestamp", header: "v1=deadbeef"},
		{name: "no signature", header: fmt.Sprintf("t=%d", time.Now().Unix())},
		{name: "bad timestamp", header: "t=abc,v1=deadbeef"},
		{name: "garbage", header: "not-a-signature"},
	}

	for _, tt := range tests {
		if err := VerifySignature(payload, tt.header, secret, DefaultSignatureTolerance); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("%s: expected ErrAuthentication, got %v", tt.name, err)
		}
	}
}

func TestVerifySignatureSecretRotation(t *testing.T) {
	payload := []byte(`{"a":1}`)
	secret := "whsec_new"
	ts := time.Now().Unix()

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	// Old-secret signature first, valid one second.
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "0000000000000000000000000000000000000000000000000000000000000000", valid)
	if err := VerifySignature(payload, header, secret, DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected rotated signature to validate, got %v", err)
	}
}
