package counter

import (
	"context"
	"strconv"

	"github.com/resumeforge/ResumeForge/internal/pkg/cache"
)

const (
	webhookOutcomesKey    = "webhooks:counters:outcomes"
	optimizationStatusKey = "optimizations:counters:status"
)

// AddWebhookOutcome increments the counter for one webhook disposition
// (processed, duplicate, ignored, rejected, failed) in Redis.
func AddWebhookOutcome(outcome string) error {
	client := cache.GetClient()
	if client == nil {
		return nil
	}
	return client.HIncrBy(context.Background(), webhookOutcomesKey, outcome, 1).Err()
}

// AddOptimizationStatus increments the counter for a terminal optimization
// status (completed, failed).
func AddOptimizationStatus(status string) error {
	client := cache.GetClient()
	if client == nil {
		return nil
	}
	return client.HIncrBy(context.Background(), optimizationStatusKey, status, 1).Err()
}

// WebhookOutcomes returns the accumulated counts per disposition.
func WebhookOutcomes() (map[string]int64, error) {
	client := cache.GetClient()
	if client == nil {
		return map[string]int64{}, nil
	}
	raw, err := client.HGetAll(context.Background(), webhookOutcomesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
		}
	}
	return out, nil
}
