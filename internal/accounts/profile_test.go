package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/greengrocer/storefront/internal/orders"
	"github.com/greengrocer/storefront/pkg/db/dbtest"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/pagination"
)

type stubHistory struct {
	params pagination.Params
	list   *orders.OrderList
	err    error
}

func (s *stubHistory) History(_ context.Context, _ uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	s.params = params
	return s.list, s.err
}

func TestProfileIncludesRecentOrders(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	account := dbtest.MustCreateAccount(t, conn)
	history := &stubHistory{list: &orders.OrderList{Orders: []orders.OrderSummary{{ID: uuid.New(), ItemCount: 2}}}}

	svc, err := NewProfileService(NewRepository(conn), history)
	if err != nil {
		t.Fatalf("new profile service: %v", err)
	}
	profile, err := svc.Profile(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Account.Username != account.Username {
		t.Fatalf("expected username %s, got %s", account.Username, profile.Account.Username)
	}
	if len(profile.RecentOrders) != 1 {
		t.Fatalf("expected one recent order, got %d", len(profile.RecentOrders))
	}
	if history.params.Limit != recentOrderLimit {
		t.Fatalf("expected limit %d, got %d", recentOrderLimit, history.params.Limit)
	}
}

func TestProfileUnknownAccount(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	svc, err := NewProfileService(NewRepository(conn), &stubHistory{})
	if err != nil {
		t.Fatalf("new profile service: %v", err)
	}
	if _, err := svc.Profile(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
