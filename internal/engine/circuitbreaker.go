package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreaker guards an outbound mail relay. State lives in a Redis
// hash per relay so every worker process shares it.
//
// After threshold consecutive failures the circuit opens and sends are
// refused. Once the cooldown has passed one probe send is let through:
// success closes the circuit, failure opens it again.
type CircuitBreaker struct {
	redisClient *redis.Client
	logger      *slog.Logger
	threshold   int
	cooldown    time.Duration
}

// BreakerState is a snapshot of one relay's circuit.
type BreakerState struct {
	Relay        string `json:"relay"`
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(redisClient *redis.Client, threshold int, cooldown time.Duration, logger *slog.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		redisClient: redisClient,
		logger:      logger,
		threshold:   threshold,
		cooldown:    cooldown,
	}
}

func cbKey(relay string) string {
	return fmt.Sprintf("cb:relay:%s", relay)
}

func (cb *CircuitBreaker) cooledDown(lastFailedAt int64) bool {
	return time.Now().Unix()-lastFailedAt >= int64(cb.cooldown.Seconds())
}

// Allow reports the relay's state and whether a send may proceed.
func (cb *CircuitBreaker) Allow(ctx context.Context, relay string) (string, bool) {
	key := cbKey(relay)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return StateClosed, true
	}

	switch data["state"] {
	case StateOpen:
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if !cb.cooledDown(lastFailedAt) {
			return StateOpen, false
		}
		cb.redisClient.HSet(ctx, key, "state", StateHalfOpen)
		cb.logger.Info("relay circuit half-open", "relay", relay)
		return StateHalfOpen, true
	case StateHalfOpen:
		return StateHalfOpen, true
	default:
		return StateClosed, true
	}
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, relay string) {
	key := cbKey(relay)

	prev, _ := cb.redisClient.HGet(ctx, key, "state").Result()
	cb.redisClient.HSet(ctx, key, "state", StateClosed, "failures", 0)

	if prev == StateHalfOpen {
		cb.logger.Info("relay circuit closed", "relay", relay)
	}
}

// RecordFailure counts a failed send and opens the circuit when the
// threshold is reached or a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, relay string) {
	key := cbKey(relay)

	failures, err := cb.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record relay failure", "relay", relay, "error", err)
		return
	}
	cb.redisClient.HSet(ctx, key, "last_failed_at", time.Now().Unix())

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()
	switch {
	case state == StateHalfOpen:
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("relay circuit re-opened", "relay", relay)
	case failures >= int64(cb.threshold):
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("relay circuit opened",
			"relay", relay,
			"failures", failures,
			"threshold", cb.threshold,
		)
	case state == "":
		cb.redisClient.HSet(ctx, key, "state", StateClosed)
	}
}

// State returns the relay's circuit without changing it.
func (cb *CircuitBreaker) State(ctx context.Context, relay string) BreakerState {
	result := BreakerState{Relay: relay, State: StateClosed}

	data, err := cb.redisClient.HGetAll(ctx, cbKey(relay)).Result()
	if err != nil || len(data) == 0 {
		return result
	}

	result.Failures, _ = strconv.Atoi(data["failures"])
	if s := data["state"]; s != "" {
		result.State = s
	}

	lastFailed, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
	if result.State == StateOpen && cb.cooledDown(lastFailed) {
		result.State = StateHalfOpen
	}
	if lastFailed > 0 {
		result.LastFailedAt = time.Unix(lastFailed, 0).UTC().Format(time.RFC3339)
	}

	return result
}
