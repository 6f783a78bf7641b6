package cron

import (
	"context"
	"fmt"
	"time"
)

const defaultEmptyCartMaxAge = 30 * 24 * time.Hour

type emptyCartRepo interface {
	DeleteEmptyBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewCartPruneJob removes durable carts left without lines for longer than maxAge.
// Carts are recreated on the next add, so pruning is invisible to shoppers.
func NewCartPruneJob(repo emptyCartRepo, maxAge time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if maxAge <= 0 {
		maxAge = defaultEmptyCartMaxAge
	}
	return &cartPruneJob{repo: repo, maxAge: maxAge, now: time.Now}, nil
}

type cartPruneJob struct {
	repo   emptyCartRepo
	maxAge time.Duration
	now    func() time.Time
}

func (j *cartPruneJob) Name() string { return "cart-prune" }

func (j *cartPruneJob) Run(ctx context.Context) (int64, error) {
	deleted, err := j.repo.DeleteEmptyBefore(ctx, j.now().UTC().Add(-j.maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune empty carts: %w", err)
	}
	return deleted, nil
}
