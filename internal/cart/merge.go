package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/greengrocer/storefront/pkg/metrics"
)

var errProductGone = errors.New("product no longer exists")

type mergeObserver interface {
	ObserveMerge(outcome string, merged, skipped int)
}

// MergeResult summarizes one login-time merge.
type MergeResult struct {
	Merged  int
	Skipped []uuid.UUID
}

// Merger folds a guest session cart into the account's durable cart.
type Merger struct {
	repo       Repository
	tx         txRunner
	products   productLoader
	sessions   sessionStore
	sessionTTL time.Duration
	observer   mergeObserver
	logg       *logger.Logger
}

// NewMerger wires the merge engine. observer may be nil.
func NewMerger(repo Repository, tx txRunner, products productLoader, sessions sessionStore, sessionTTL time.Duration, observer mergeObserver, logg *logger.Logger) (*Merger, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Merger{
		repo:       repo,
		tx:         tx,
		products:   products,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		observer:   observer,
		logg:       logg,
	}, nil
}

// claimTTL bounds how long a claimed session cart outlives a crashed merge.
const claimTTL = 10 * time.Minute

// MergeOnLogin adds every session quantity onto the durable cart. The session
// hash is claimed up front, so the read and the clear are one redis step and a
// guest write racing the login lands in a fresh session cart. Lines whose
// product vanished are skipped. When the durable write fails the claimed
// quantities are folded back into the session cart.
func (m *Merger) MergeOnLogin(ctx context.Context, sessionID string, accountID uuid.UUID) (*MergeResult, error) {
	result := &MergeResult{}
	if sessionID == "" {
		return result, nil
	}
	ctx = m.logg.WithSessionID(m.logg.WithAccountID(ctx, accountID.String()), sessionID)

	session := NewSessionCart(m.sessions, m.products, sessionID, m.sessionTTL)
	claimKey := m.sessions.MergeClaimKey(sessionID, uuid.NewString())
	quantities, err := session.claim(ctx, claimKey, claimTTL)
	if err != nil {
		m.observe(metrics.OutcomeError, result)
		return nil, err
	}
	if len(quantities) == 0 {
		m.release(ctx, claimKey)
		return result, nil
	}

	merged, err := m.mergeClaimed(ctx, accountID, quantities, result)
	if err != nil {
		if restoreErr := session.restore(ctx, claimKey); restoreErr != nil {
			m.logg.Error(ctx, "failed to restore claimed session cart", restoreErr)
		}
		m.observe(metrics.OutcomeError, result)
		return nil, err
	}
	result.Merged = merged
	m.release(ctx, claimKey)

	m.observe(metrics.OutcomeSuccess, result)
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"merged":  result.Merged,
		"skipped": len(result.Skipped),
	}), "session cart merged")
	return result, nil
}

func (m *Merger) mergeClaimed(ctx context.Context, accountID uuid.UUID, quantities map[uuid.UUID]int, result *MergeResult) (int, error) {
	ids := make([]uuid.UUID, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	products, err := m.products.FindByIDs(ctx, ids)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart products")
	}

	var skipped error
	merge := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			skipped = multierr.Append(skipped, fmt.Errorf("product %s: %w", id, errProductGone))
			result.Skipped = append(result.Skipped, id)
			continue
		}
		merge = append(merge, id)
	}

	if len(merge) > 0 {
		err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := m.repo.WithTx(tx)
			cart, err := repo.EnsureCart(ctx, accountID)
			if err != nil {
				return err
			}
			for _, id := range merge {
				if err := repo.IncrementLine(ctx, cart.ID, id, quantities[id]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			result.Skipped = nil
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge session cart")
		}
	}

	if skipped != nil {
		m.logg.Warn(m.logg.WithField(ctx, "skipped", skipped.Error()), "session cart lines skipped during merge")
	}
	return len(merge), nil
}

// release drops a claim whose lines are already merged. A failed delete only
// leaves the claim to expire; it is never read again.
func (m *Merger) release(ctx context.Context, claimKey string) {
	if err := m.sessions.Del(ctx, claimKey); err != nil {
		m.logg.Error(ctx, "failed to drop claimed session cart", err)
	}
}

func (m *Merger) observe(outcome string, result *MergeResult) {
	if m.observer == nil {
		return
	}
	m.observer.ObserveMerge(outcome, result.Merged, len(result.Skipped))
}
