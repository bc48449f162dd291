package repository

import (
	"context"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error)
	// 一意制約違反はErrConflictを返す
	Insert(ctx context.Context, item *model.CartItem) error
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	UpdatePrice(ctx context.Context, cartItemID int64, price decimal.Decimal) error
	// 明細を別カートへ付け替える（マージの移送）
	Reassign(ctx context.Context, cartItemID int64, targetCartID int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
}
