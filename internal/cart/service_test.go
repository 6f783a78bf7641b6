package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengrocer/storefront/pkg/db/dbtest"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
)

func guest(sessionID string) Principal {
	return Principal{SessionID: sessionID}
}

func member(accountID uuid.UUID) Principal {
	return Principal{AccountID: &accountID}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, 0)
	require.Error(t, err)
}

func TestCartForRequiresSessionForGuests(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CartFor(Principal{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	cart, err := f.svc.CartFor(guest("abc"))
	require.NoError(t, err)
	assert.IsType(t, &SessionCart{}, cart)

	cart, err = f.svc.CartFor(member(uuid.New()))
	require.NoError(t, err)
	assert.IsType(t, &AccountCart{}, cart)
}

func TestAddToCartValidatesProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soldOut := dbtest.MustCreateProduct(t, f.conn, "Figs", "4.00", 0)
	pulled := dbtest.MustCreateProduct(t, f.conn, "Okra", "2.00", 3, dbtest.Disabled())

	for _, principal := range []Principal{guest("s-1"), member(dbtest.MustCreateAccount(t, f.conn).ID)} {
		_, err := f.svc.AddToCart(ctx, principal, uuid.New())
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

		_, err = f.svc.AddToCart(ctx, principal, soldOut.ID)
		shortage, ok := pkgerrors.ShortageFrom(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "Figs", shortage.ProductName)

		_, err = f.svc.AddToCart(ctx, principal, pulled.ID)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	}
}

func TestCartOperationsAcrossBackends(t *testing.T) {
	f := newFixture(t)
	account := dbtest.MustCreateAccount(t, f.conn)
	principals := map[string]Principal{
		"session": guest("s-ops"),
		"account": member(account.ID),
	}

	for name, principal := range principals {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pears := dbtest.MustCreateProduct(t, f.conn, "Pears "+name, "1.50", 10)
			bread := dbtest.MustCreateProduct(t, f.conn, "Bread "+name, "3.25", 10)

			_, err := f.svc.AddToCart(ctx, principal, pears.ID)
			require.NoError(t, err)
			_, err = f.svc.AddToCart(ctx, principal, pears.ID)
			require.NoError(t, err)
			view, err := f.svc.AddToCart(ctx, principal, bread.ID)
			require.NoError(t, err)

			assert.Equal(t, map[string]int{"Pears " + name: 2, "Bread " + name: 1}, quantitiesOf(view))
			assert.Equal(t, "6.25", view.Total.StringFixed(2))
			assert.Equal(t, 3, view.ItemCount)

			view, err = f.svc.DecreaseQuantity(ctx, principal, pears.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, quantitiesOf(view)["Pears "+name])

			view, err = f.svc.DecreaseQuantity(ctx, principal, pears.ID)
			require.NoError(t, err)
			_, present := quantitiesOf(view)["Pears "+name]
			assert.False(t, present, "line at quantity 0 must be removed")

			view, err = f.svc.RemoveFromCart(ctx, principal, bread.ID)
			require.NoError(t, err)
			assert.Empty(t, view.Lines)
			assert.True(t, view.Total.IsZero())

			reloaded := dbtest.MustReloadProduct(t, f.conn, pears.ID)
			assert.Equal(t, 10, reloaded.Stock, "cart operations must not touch stock")
		})
	}
}

func TestRemovingMissingLineIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.MustCreateAccount(t, f.conn)
	kept := dbtest.MustCreateProduct(t, f.conn, "Kept", "1.00", 5)
	missing := uuid.New()

	for _, principal := range []Principal{guest("s-idem"), member(account.ID)} {
		_, err := f.svc.AddToCart(ctx, principal, kept.ID)
		require.NoError(t, err)
		before, err := f.svc.ViewCart(ctx, principal)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			after, err := f.svc.RemoveFromCart(ctx, principal, missing)
			require.NoError(t, err)
			assert.Equal(t, quantitiesOf(before), quantitiesOf(after))

			after, err = f.svc.DecreaseQuantity(ctx, principal, missing)
			require.NoError(t, err)
			assert.Equal(t, quantitiesOf(before), quantitiesOf(after))
		}
	}
}

func TestAddThenDecrementRoundTrips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.MustCreateAccount(t, f.conn)
	base := dbtest.MustCreateProduct(t, f.conn, "Base", "2.00", 5)
	extra := dbtest.MustCreateProduct(t, f.conn, "Extra", "2.00", 5)

	for _, principal := range []Principal{guest("s-round"), member(account.ID)} {
		_, err := f.svc.AddToCart(ctx, principal, base.ID)
		require.NoError(t, err)
		before, err := f.svc.ViewCart(ctx, principal)
		require.NoError(t, err)

		_, err = f.svc.AddToCart(ctx, principal, extra.ID)
		require.NoError(t, err)
		after, err := f.svc.DecreaseQuantity(ctx, principal, extra.ID)
		require.NoError(t, err)
		assert.Equal(t, quantitiesOf(before), quantitiesOf(after))

		_, err = f.svc.AddToCart(ctx, principal, base.ID)
		require.NoError(t, err)
		after, err = f.svc.DecreaseQuantity(ctx, principal, base.ID)
		require.NoError(t, err)
		assert.Equal(t, quantitiesOf(before), quantitiesOf(after))
	}
}

func TestAccountCartKeepsInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.MustCreateAccount(t, f.conn)
	zucchini := dbtest.MustCreateProduct(t, f.conn, "Zucchini", "1.00", 5)
	apricot := dbtest.MustCreateProduct(t, f.conn, "Apricot", "1.00", 5)

	_, err := f.svc.AddToCart(ctx, member(account.ID), zucchini.ID)
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, member(account.ID), apricot.ID)
	require.NoError(t, err)
	view, err := f.svc.AddToCart(ctx, member(account.ID), zucchini.ID)
	require.NoError(t, err)

	require.Len(t, view.Lines, 2)
	assert.Equal(t, "Zucchini", view.Lines[0].Name)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, "Apricot", view.Lines[1].Name)
}

func TestSessionCartSkipsDeletedProductsAndRefreshesTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := dbtest.MustCreateProduct(t, f.conn, "Kept", "1.00", 5)
	gone := dbtest.MustCreateProduct(t, f.conn, "Gone", "1.00", 5)

	_, err := f.svc.AddToCart(ctx, guest("s-ttl"), kept.ID)
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, guest("s-ttl"), gone.ID)
	require.NoError(t, err)
	assert.Equal(t, testSessionTTL, f.mr.TTL(f.redis.SessionCartKey("s-ttl")))

	require.NoError(t, f.conn.Delete(gone).Error)

	view, err := f.svc.ViewCart(ctx, guest("s-ttl"))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Kept": 1}, quantitiesOf(view))
}

func TestSessionCartIgnoresCorruptedField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := dbtest.MustCreateProduct(t, f.conn, "Kept", "1.00", 5)

	_, err := f.svc.AddToCart(ctx, guest("s-junk"), kept.ID)
	require.NoError(t, err)
	f.mr.HSet(f.redis.SessionCartKey("s-junk"), "junk", "notanint")
	f.mr.HSet(f.redis.SessionCartKey("s-junk"), uuid.NewString(), "1.5")

	view, err := f.svc.ViewCart(ctx, guest("s-junk"))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Kept": 1}, quantitiesOf(view))

	view, err = f.svc.AddToCart(ctx, guest("s-junk"), kept.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Kept": 2}, quantitiesOf(view))
}

func TestClearEmptiesBothBackends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.MustCreateAccount(t, f.conn)
	item := dbtest.MustCreateProduct(t, f.conn, "Item", "1.00", 5)

	for _, principal := range []Principal{guest("s-clear"), member(account.ID)} {
		_, err := f.svc.AddToCart(ctx, principal, item.ID)
		require.NoError(t, err)

		cart, err := f.svc.CartFor(principal)
		require.NoError(t, err)
		require.NoError(t, cart.Clear(ctx))

		total, err := cart.Total(ctx)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	}
}
