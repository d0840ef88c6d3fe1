package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-qcm/internal/platform/cache"
)

// ErrBudgetExceeded is returned when a scope has used its token budget.
var ErrBudgetExceeded = errors.New("token budget exceeded")

// BudgetChecker checks and records token usage per scope (a teacher, a
// class, or the whole service).
type BudgetChecker interface {
	// Check returns true if the scope has budget remaining.
	Check(ctx context.Context, scope string) (bool, error)
	// Record adds token usage to a scope.
	Record(ctx context.Context, scope string, tokens int) error
	// Usage returns current usage and budget; a zero budget is unlimited.
	Usage(ctx context.Context, scope string) (used int64, budget int64, err error)
}

// InMemoryBudget is a process-local budget tracker.
type InMemoryBudget struct {
	mu      sync.RWMutex
	budgets map[string]int64 // scope -> budget limit
	usage   map[string]int64 // scope -> tokens used
}

// NewInMemoryBudget creates a new in-memory budget tracker.
func NewInMemoryBudget() *InMemoryBudget {
	return &InMemoryBudget{
		budgets: make(map[string]int64),
		usage:   make(map[string]int64),
	}
}

// SetBudget sets the token budget for a scope.
func (b *InMemoryBudget) SetBudget(scope string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[scope] = tokens
}

func (b *InMemoryBudget) Check(_ context.Context, scope string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	budget, hasBudget := b.budgets[scope]
	if !hasBudget || budget <= 0 {
		// No budget set means unlimited.
		return true, nil
	}
	return b.usage[scope] < budget, nil
}

func (b *InMemoryBudget) Record(_ context.Context, scope string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[scope] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, scope string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[scope], b.budgets[scope], nil
}

// RedisBudget shares usage counters between server instances. Every scope
// gets the same budget.
type RedisBudget struct {
	client *redis.Client
	budget int64
}

// NewRedisBudget creates a Redis-backed tracker with a budget per scope;
// zero means unlimited.
func NewRedisBudget(client *redis.Client, budget int64) *RedisBudget {
	return &RedisBudget{client: client, budget: budget}
}

func (b *RedisBudget) Check(ctx context.Context, scope string) (bool, error) {
	if b.budget <= 0 {
		return true, nil
	}
	used, err := b.used(ctx, scope)
	if err != nil {
		return false, err
	}
	return used < b.budget, nil
}

func (b *RedisBudget) Record(ctx context.Context, scope string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	if err := b.client.IncrBy(ctx, budgetKey(scope), int64(tokens)).Err(); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, scope string) (int64, int64, error) {
	used, err := b.used(ctx, scope)
	return used, b.budget, err
}

func (b *RedisBudget) used(ctx context.Context, scope string) (int64, error) {
	n, err := b.client.Get(ctx, budgetKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return n, nil
}

func budgetKey(scope string) string {
	return cache.Key("budget", scope)
}
