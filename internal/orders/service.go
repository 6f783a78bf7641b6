package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/pagination"
)

// Service exposes read access to a shopper's orders. Orders are never mutated here.
type Service interface {
	History(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*OrderList, error)
	Detail(ctx context.Context, accountID, orderID uuid.UUID) (*OrderDetail, error)
}

type service struct {
	repo Repository
}

// NewService builds the orders read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) History(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		if _, err := cursor.Time(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
	}

	rows, err := s.repo.ListByAccount(ctx, accountID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	pageSize := pagination.NormalizeLimit(params.Limit)
	list := &OrderList{Orders: make([]OrderSummary, 0, pageSize)}
	if len(rows) > pageSize {
		last := rows[pageSize-1]
		list.NextCursor = pagination.EncodeCursor(pagination.TimeCursor(last.CreatedAt, last.ID))
		rows = rows[:pageSize]
	}
	for i := range rows {
		list.Orders = append(list.Orders, NewOrderSummary(&rows[i]))
	}
	return list, nil
}

// Detail returns NOT_FOUND for unknown orders and FORBIDDEN for another account's order.
func (s *service) Detail(ctx context.Context, accountID, orderID uuid.UUID) (*OrderDetail, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account")
	}
	return NewOrderDetail(order), nil
}
