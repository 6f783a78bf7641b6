package cart

import (
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	product "github.com/greengrocer/storefront/internal/products"
	"github.com/greengrocer/storefront/pkg/db"
	"github.com/greengrocer/storefront/pkg/db/dbtest"
	"github.com/greengrocer/storefront/pkg/logger"
	redisclient "github.com/greengrocer/storefront/pkg/redis"
)

const testSessionTTL = 2 * time.Hour

type fixture struct {
	conn     *gorm.DB
	mr       *miniredis.Miniredis
	redis    *redisclient.Client
	products *product.Repository
	repo     Repository
	svc      Service
	merger   *Merger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.OpenSQLite(t)
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	f := &fixture{
		conn:     conn,
		mr:       mr,
		redis:    redisclient.NewFromRaw(raw),
		products: product.NewRepository(conn),
		repo:     NewRepository(conn),
	}
	runner := db.Wrap(conn)

	svc, err := NewService(f.repo, runner, f.products, f.redis, testSessionTTL)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc

	logg := logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard})
	merger, err := NewMerger(f.repo, runner, f.products, f.redis, testSessionTTL, nil, logg)
	if err != nil {
		t.Fatalf("new merger: %v", err)
	}
	f.merger = merger
	return f
}

func quantitiesOf(view *View) map[string]int {
	out := make(map[string]int, len(view.Lines))
	for _, line := range view.Lines {
		out[line.Name] = line.Quantity
	}
	return out
}
