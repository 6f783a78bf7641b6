package checkout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/cart"
	"github.com/greengrocer/storefront/internal/inventory"
	"github.com/greengrocer/storefront/internal/orders"
	"github.com/greengrocer/storefront/pkg/db/models"
	"github.com/greengrocer/storefront/pkg/enums"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/greengrocer/storefront/pkg/metrics"
	"github.com/greengrocer/storefront/pkg/outbox"
	"github.com/greengrocer/storefront/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, input inventory.ReserveInput) (*models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type checkoutObserver interface {
	ObserveCheckout(outcome string, duration time.Duration)
	ObserveOrderLines(n int)
}

// Service converts an account's durable cart into an order.
type Service interface {
	Checkout(ctx context.Context, accountID uuid.UUID) (*orders.OrderDetail, error)
}

type service struct {
	tx       txRunner
	carts    cart.Repository
	orders   orders.Repository
	stock    stockReserver
	outbox   outboxPublisher
	observer checkoutObserver
	logg     *logger.Logger
}

// NewService builds the checkout service. observer may be nil.
func NewService(
	tx txRunner,
	carts cart.Repository,
	ordersRepo orders.Repository,
	stock stockReserver,
	publisher outboxPublisher,
	observer checkoutObserver,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       tx,
		carts:    carts,
		orders:   ordersRepo,
		stock:    stock,
		outbox:   publisher,
		observer: observer,
		logg:     logg,
	}, nil
}

// Checkout runs as one transaction: the order, every stock decrement, every
// order line, the cart clear and the order_placed event commit together or not
// at all. The cart row lock serializes against cart edits for the same account.
func (s *service) Checkout(ctx context.Context, accountID uuid.UUID) (*orders.OrderDetail, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account required")
	}
	ctx = s.logg.WithAccountID(ctx, accountID.String())
	started := time.Now()

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		placed, err = s.checkoutTx(ctx, tx, accountID)
		return err
	})

	outcome := outcomeFor(err)
	s.observe(outcome, time.Since(started))
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout")
		}
		if outcome == metrics.OutcomeError {
			s.logg.Error(ctx, "checkout failed", err)
		} else {
			s.logg.Info(s.logg.WithField(ctx, "outcome", outcome), "checkout rejected")
		}
		return nil, err
	}

	if s.observer != nil {
		s.observer.ObserveOrderLines(len(placed.Lines))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": placed.ID.String(),
		"total":    placed.TotalPrice.StringFixed(2),
		"lines":    len(placed.Lines),
	}), "order placed")
	return orders.NewOrderDetail(placed), nil
}

func (s *service) checkoutTx(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) (*models.Order, error) {
	carts := s.carts.WithTx(tx)
	ordersRepo := s.orders.WithTx(tx)

	record, err := carts.LockCart(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, pkgerrors.EmptyCart()
	}
	lines, err := carts.ListLines(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.EmptyCart()
	}

	order, err := ordersRepo.CreateOrder(ctx, &models.Order{AccountID: accountID, TotalPrice: decimal.Zero})
	if err != nil {
		return nil, err
	}

	products, err := s.reserveAll(ctx, tx, order.ID, lines)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	orderLines := make([]models.OrderLine, 0, len(lines))
	for i, line := range lines {
		product := products[line.ProductID]
		orderLine := models.OrderLine{
			OrderID:     order.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Position:    i + 1,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
		}
		total = total.Add(orderLine.Subtotal())
		orderLines = append(orderLines, orderLine)
	}
	if err := ordersRepo.CreateLines(ctx, orderLines); err != nil {
		return nil, err
	}
	if err := ordersRepo.UpdateTotal(ctx, order.ID, total); err != nil {
		return nil, err
	}
	if err := carts.ClearLines(ctx, record.ID); err != nil {
		return nil, err
	}

	order.TotalPrice = total
	order.Lines = orderLines
	if err := s.emitOrderPlaced(ctx, tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// reserveAll takes stock for every line, locking product rows in id order so
// concurrent checkouts sharing products cannot deadlock. When several lines
// are short, the reported shortage is the lowest product id rather than the
// first line added; order lines keep cart insertion order regardless.
func (s *service) reserveAll(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []models.CartLine) (map[uuid.UUID]*models.Product, error) {
	byProduct := make([]models.CartLine, len(lines))
	copy(byProduct, lines)
	sort.Slice(byProduct, func(i, j int) bool {
		return byProduct[i].ProductID.String() < byProduct[j].ProductID.String()
	})

	products := make(map[uuid.UUID]*models.Product, len(lines))
	for _, line := range byProduct {
		product, err := s.stock.Reserve(ctx, tx, inventory.ReserveInput{
			ProductID: line.ProductID,
			Delta:     -line.Quantity,
			Reason:    enums.InventoryReasonCheckout,
			OrderID:   &orderID,
		})
		if err != nil {
			return nil, err
		}
		if product.Disabled {
			return nil, pkgerrors.InsufficientStock(pkgerrors.StockShortage{
				ProductID:   product.ID.String(),
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   0,
			})
		}
		products[line.ProductID] = product
	}
	return products, nil
}

func (s *service) emitOrderPlaced(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	lines := make([]payloads.OrderPlacedLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, payloads.OrderPlacedLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{AccountID: order.AccountID},
		Data: payloads.OrderPlacedEvent{
			OrderID:    order.ID,
			AccountID:  order.AccountID,
			TotalPrice: order.TotalPrice,
			PlacedAt:   order.CreatedAt,
			Lines:      lines,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) observe(outcome string, duration time.Duration) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveCheckout(outcome, duration)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart):
		return metrics.OutcomeEmptyCart
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		return metrics.OutcomeInsufficientStock
	default:
		return metrics.OutcomeError
	}
}
