package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
)

// 1セント以下の差は丸め誤差として無視する
var priceNoise = decimal.New(1, -2)

func priceChanged(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(priceNoise)
}

// CartResolutionUsecase はマージ・検証・最適化・掃除を担当します。
// マージはTx内で全件処理する（カートが無ければ全体を中止、部分移送はしない）。
type CartResolutionUsecase struct {
	txManager    repo.TransactionManager
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	cartUC       *CartUsecase
}

func NewCartResolutionUsecase(
	txManager repo.TransactionManager,
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	cartUC *CartUsecase,
) *CartResolutionUsecase {
	return &CartResolutionUsecase{
		txManager:    txManager,
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		cartUC:       cartUC,
	}
}

type CartValidationResult struct {
	IsValid      bool               `json:"is_valid"`
	Errors       []string           `json:"errors"`
	Warnings     []string           `json:"warnings"`
	UpdatedItems []CartItemResponse `json:"updated_items"`
}

type CartHealthReport struct {
	Error         string           `json:"error,omitempty"`
	CartID        int64            `json:"cart_id,omitempty"`
	Status        model.CartStatus `json:"status,omitempty"`
	IsValid       bool             `json:"is_valid"`
	ErrorCount    int              `json:"error_count"`
	WarningCount  int              `json:"warning_count"`
	TotalItems    int              `json:"total_items"`
	TotalQuantity int64            `json:"total_quantity"`
	TotalValue    decimal.Decimal  `json:"total_value"`
	CartAgeHours  float64          `json:"cart_age_hours"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	LastUpdated   time.Time        `json:"last_updated"`
}

// MergeCarts はセッションカート（source）をユーザーカート（target）へマージします。
// ソース明細ごとの解決メッセージを、明細の並び順で返す。
//
// 競合（同一商品が両方にある）の解決:
//   - 数量は合算、99を超えたら99に丸めてその旨のメッセージを出す
//   - 価格はスナップショットが新しい方を採用。ただし差が1セント以下なら
//     採用もメッセージも無し（丸め誤差）
//
// 処理後、sourceはABANDONEDにする（削除はしない。監査と掃除対象として残す）。
func (u *CartResolutionUsecase) MergeCarts(ctx context.Context, sourceCartID int64, targetCartID int64) (CartResponse, []string, error) {
	messages := []string{}

	err := u.txManager.WithinTx(ctx, func(r repo.TxRepos) error {
		source, err := r.Carts().FindByID(ctx, sourceCartID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "source cart not found")
		}
		if err != nil {
			return err
		}

		target, err := r.Carts().FindByID(ctx, targetCartID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "target cart not found")
		}
		if err != nil {
			return err
		}

		sourceItems, err := r.CartItems().ListByCartID(ctx, source.ID)
		if err != nil {
			return err
		}

		// 空のセッションカートはno-op（メッセージ無し、sourceもそのまま）
		if len(sourceItems) == 0 {
			return nil
		}

		targetItems, err := r.CartItems().ListByCartID(ctx, target.ID)
		if err != nil {
			return err
		}

		if len(targetItems) == 0 {
			// ユーザーカートが空なら比較せずに全件移送
			for _, si := range sourceItems {
				if err := r.CartItems().Reassign(ctx, si.ID, target.ID); err != nil {
					return err
				}
			}
			messages = append(messages, "User cart is empty, adopting all session cart items")
		} else {
			if err := u.mergeItems(ctx, r, sourceItems, targetItems, target.ID, &messages); err != nil {
				return err
			}
		}

		if err := r.Carts().UpdateStatus(ctx, source.ID, model.CartStatusAbandoned); err != nil {
			return err
		}
		return r.Carts().Touch(ctx, target.ID)
	})

	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return CartResponse{}, nil, err
		}
		return CartResponse{}, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	view, err := u.cartUC.GetCartView(ctx, targetCartID)
	if err != nil {
		return CartResponse{}, nil, err
	}
	return view, messages, nil
}

// MergeIntoOwnedCart は現在のカートを指定カートへ手動で取り込みます。
// 対象カートは呼び出したユーザー本人のものに限る（他人のカートは403）。
func (u *CartResolutionUsecase) MergeIntoOwnedCart(ctx context.Context, userID int64, sourceCartID int64, targetCartID int64) (CartResponse, []string, error) {
	target, err := u.cartRepo.FindByID(ctx, targetCartID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, nil, NewHTTPError(http.StatusNotFound, "target cart not found")
	}
	if err != nil {
		return CartResponse{}, nil, err
	}

	if target.UserID == nil || *target.UserID != userID {
		return CartResponse{}, nil, NewHTTPError(http.StatusForbidden, "access denied to target cart")
	}

	return u.MergeCarts(ctx, sourceCartID, targetCartID)
}

func (u *CartResolutionUsecase) mergeItems(
	ctx context.Context,
	r repo.TxRepos,
	sourceItems []model.CartItem,
	targetItems []model.CartItem,
	targetCartID int64,
	messages *[]string,
) error {
	byProduct := make(map[int64]model.CartItem, len(targetItems))
	for _, ti := range targetItems {
		byProduct[ti.ProductID] = ti
	}

	for _, si := range sourceItems {
		ti, conflict := byProduct[si.ProductID]
		if !conflict {
			if err := r.CartItems().Reassign(ctx, si.ID, targetCartID); err != nil {
				return err
			}
			*messages = append(*messages, fmt.Sprintf("Added product %d from session cart", si.ProductID))
			continue
		}

		newQty := ti.Quantity + si.Quantity
		if newQty > 99 {
			newQty = 99
			*messages = append(*messages, fmt.Sprintf(
				"Product %d: Combined quantity (%d + %d) exceeds maximum, capped at 99",
				si.ProductID, ti.Quantity, si.Quantity))
		} else {
			*messages = append(*messages, fmt.Sprintf(
				"Product %d: Merged quantities (%d + %d = %d)",
				si.ProductID, ti.Quantity, si.Quantity, newQty))
		}

		if err := r.CartItems().UpdateQuantity(ctx, ti.ID, newQty); err != nil {
			return err
		}

		// 価格は新しいスナップショット優先。比較はマージ前のupdated_at同士で行う
		if si.UpdatedAt.After(ti.UpdatedAt) && priceChanged(ti.UnitPrice, si.UnitPrice) {
			*messages = append(*messages, fmt.Sprintf(
				"Product %d: Using newer price $%s from session cart",
				si.ProductID, si.UnitPrice.StringFixed(2)))
			if err := r.CartItems().UpdatePrice(ctx, ti.ID, si.UnitPrice); err != nil {
				return err
			}
		}

		// 競合した明細はsource側に残る（sourceごとABANDONEDになる）
	}

	return nil
}

// ResolveAndValidate はカートを検証して、価格ズレと過剰数量は直して永続化します。
// errorsが1件でもあればis_valid=false。warningは妥当性に影響しない。
// 商品消滅はここでは消さずにエラー報告だけする（削除はOptimizeの仕事）。
func (u *CartResolutionUsecase) ResolveAndValidate(ctx context.Context, cartID int64) (CartValidationResult, error) {
	result := CartValidationResult{
		Errors:       []string{},
		Warnings:     []string{},
		UpdatedItems: []CartItemResponse{},
	}

	cart, err := u.cartRepo.FindByID(ctx, cartID)
	if errors.Is(err, repo.ErrNotFound) {
		result.Errors = append(result.Errors, "Cart not found")
		return result, nil
	}
	if err != nil {
		return result, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return result, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	for i := range items {
		it := &items[i]

		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Product %d is no longer available", it.ProductID))
			continue
		}
		if err != nil {
			return result, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		mutated := false

		// スナップショット価格とカタログ価格のズレ（1セント超のみ）
		if priceChanged(it.UnitPrice, p.Price) {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Price for '%s' has changed from $%s to $%s",
				p.Name, it.UnitPrice.StringFixed(2), p.Price.StringFixed(2)))
			if err := u.cartItemRepo.UpdatePrice(ctx, it.ID, p.Price); err != nil {
				return result, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			it.UnitPrice = p.Price
			mutated = true
		}

		// Storeが最低数量を守っていても、ここが最終権威として再チェックする
		if it.Quantity < 1 {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"Invalid quantity %d for product %s", it.Quantity, p.Name))
		} else if it.Quantity > 99 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Quantity %d for '%s' exceeds maximum (99)", it.Quantity, p.Name))
			if err := u.cartItemRepo.UpdateQuantity(ctx, it.ID, 99); err != nil {
				return result, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			it.Quantity = 99
			mutated = true
		}

		if mutated {
			resp := u.cartUC.buildItemResponse(ctx, *it)
			resp.ProductName = p.Name
			result.UpdatedItems = append(result.UpdatedItems, resp)
		}
	}

	// カート単位の制約
	if len(items) > 100 {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"Cart has %d items, maximum allowed is 100", len(items)))
	}

	var totalQty int64
	for _, it := range items {
		totalQty += it.Quantity
	}
	if totalQty > 500 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Total quantity %d is very high", totalQty))
	}

	if cart.ExpiresAt != nil && cart.ExpiresAt.Before(time.Now()) {
		result.Errors = append(result.Errors, "Cart has expired")
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// Optimize は壊れた明細を実際に削除する破壊的な版。
// 消えた商品の明細と数量0以下の明細は削除、99超は99へ丸める。
// カート自体が無い場合は例外にせず(false, ["Cart not found"])を返す（運用向けの操作）。
func (u *CartResolutionUsecase) Optimize(ctx context.Context, cartID int64) (bool, []string, error) {
	if _, err := u.cartRepo.FindByID(ctx, cartID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, []string{"Cart not found"}, nil
		}
		return false, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return false, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	messages := []string{}
	changed := false

	for _, it := range items {
		_, err := u.productRepo.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			if err := u.cartItemRepo.DeleteByID(ctx, it.ID); err != nil {
				return false, nil, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			messages = append(messages, fmt.Sprintf("Removed unavailable product %d", it.ProductID))
			changed = true
			continue
		}
		if err != nil {
			return false, nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if it.Quantity < 1 {
			if err := u.cartItemRepo.DeleteByID(ctx, it.ID); err != nil {
				return false, nil, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			messages = append(messages, fmt.Sprintf("Removed item with invalid quantity: %d", it.Quantity))
			changed = true
		} else if it.Quantity > 99 {
			if err := u.cartItemRepo.UpdateQuantity(ctx, it.ID, 99); err != nil {
				return false, nil, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			messages = append(messages, fmt.Sprintf("Reduced quantity for product %d to maximum (99)", it.ProductID))
			changed = true
		}
	}

	if changed {
		if err := u.cartRepo.Touch(ctx, cartID); err != nil {
			return false, nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}

	if len(messages) == 0 {
		messages = append(messages, "Cart is already optimized")
	}

	return changed, messages, nil
}

// HealthReport は検証＋集計メトリクスのレポートを返す。
// カートが無い場合も構造化したエラーで返す（例外は投げない、監視で集計しやすくする）
func (u *CartResolutionUsecase) HealthReport(ctx context.Context, cartID int64) (CartHealthReport, error) {
	cart, err := u.cartRepo.FindByID(ctx, cartID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartHealthReport{Error: "Cart not found"}, nil
	}
	if err != nil {
		return CartHealthReport{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	validation, err := u.ResolveAndValidate(ctx, cartID)
	if err != nil {
		return CartHealthReport{}, err
	}

	// validateが直した後の状態で集計する
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartHealthReport{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var totalQty int64
	totalValue := decimal.Zero
	for _, it := range items {
		totalQty += it.Quantity
		totalValue = totalValue.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
	}

	ageHours := time.Since(cart.CreatedAt).Hours()

	return CartHealthReport{
		CartID:        cart.ID,
		Status:        cart.Status,
		IsValid:       validation.IsValid,
		ErrorCount:    len(validation.Errors),
		WarningCount:  len(validation.Warnings),
		TotalItems:    len(items),
		TotalQuantity: totalQty,
		TotalValue:    roundMoney(totalValue),
		CartAgeHours:  math.Round(ageHours*100) / 100,
		ExpiresAt:     cart.ExpiresAt,
		LastUpdated:   cart.UpdatedAt,
	}, nil
}

// CleanupAbandoned は放置されたABANDONEDカートを削除する（明細もカスケード）。
// EXPIREDへの遷移とは別物：こちらは削除、あちらは状態遷移のみ。
func (u *CartResolutionUsecase) CleanupAbandoned(ctx context.Context, daysOld int) (int, error) {
	if daysOld < 0 {
		return 0, NewHTTPError(http.StatusBadRequest, "invalid days_old")
	}

	cutoff := time.Now().AddDate(0, 0, -daysOld)

	carts, err := u.cartRepo.ListAbandonedBefore(ctx, cutoff)
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	count := 0
	for _, c := range carts {
		if err := u.cartRepo.DeleteByID(ctx, c.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return count, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		count++
	}

	return count, nil
}

// CleanupExpired は期限切れACTIVEゲストカートをEXPIREDへ遷移させる（削除しない）
func (u *CartResolutionUsecase) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := u.cartRepo.ExpireActiveBefore(ctx, time.Now())
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return n, nil
}
