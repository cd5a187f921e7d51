package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds the replay window: events whose signed
// timestamp is older (or further in the future) than this are rejected.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifySignature checks a composite signature header of the form
//
//	t=<unix seconds>,v1=<hex hmac-sha256>[,v1=...]
//
// where the MAC is computed over "<t>.<payload>" with the shared webhook
// secret. Multiple v1 candidates are accepted to support secret rotation.
// Comparison uses hmac.Equal. The secret is never logged.
func VerifySignature(payload []byte, signatureHeader, secret string, tolerance time.Duration) error {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: missing signature header", ErrAuthentication)
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	timestamp, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := time.Since(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrAuthentication)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		if hmac.Equal(candidate, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", ErrAuthentication)
}

// ComputeSignatureHeader builds a valid signature header for the given
// payload and timestamp. Used by tests and the local replay tool.
func ComputeSignatureHeader(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var timestamp int64 = -1
	var candidates [][]byte

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrAuthentication)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(kv[1]))
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}

	if timestamp < 0 {
		return 0, nil, fmt.Errorf("%w: missing timestamp", ErrAuthentication)
	}
	if len(candidates) == 0 {
		return 0, nil, fmt.Errorf("%w: missing v1 signature", ErrAuthentication)
	}
	return timestamp, candidates, nil
}
