package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
)

// ゲストカートの有効期限
const guestCartTTL = 7 * 24 * time.Hour

// CartIdentityUsecase は「このリクエストはどのカートを操作するか」を決めます。
//   - ログイン済み: ユーザーカート（無ければ作成）。別のセッションカートに
//     明細があればユーザーカートへマージしてから返す
//   - 未ログイン: セッショントークン必須。セッションカート（無ければ作成）
type CartIdentityUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	resolution   *CartResolutionUsecase
}

func NewCartIdentityUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	resolution *CartResolutionUsecase,
) *CartIdentityUsecase {
	return &CartIdentityUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		resolution:   resolution,
	}
}

// ResolveCart は認証状態とセッショントークンから操作対象のカートを1つ返す
func (u *CartIdentityUsecase) ResolveCart(ctx context.Context, userID *int64, sessionID string) (model.Cart, error) {
	if userID == nil {
		return u.resolveGuestCart(ctx, sessionID)
	}

	userCart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, *userID)
	if err != nil {
		return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if sessionID == "" {
		return userCart, nil
	}

	// 別のセッションカートに明細が残っていればマージする。
	// マージに失敗してもリクエスト全体は落とさず、未マージのユーザーカートで続行
	sessionCart, err := u.cartRepo.FindActiveBySessionID(ctx, sessionID)
	if err != nil || sessionCart.ID == userCart.ID {
		return userCart, nil
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, sessionCart.ID)
	if err != nil || len(items) == 0 {
		return userCart, nil
	}

	if _, _, err := u.resolution.MergeCarts(ctx, sessionCart.ID, userCart.ID); err != nil {
		return userCart, nil
	}

	merged, err := u.cartRepo.FindByID(ctx, userCart.ID)
	if err != nil {
		return userCart, nil
	}
	return merged, nil
}

// 未ログインはセッションカート。トークンはミドルウェアが払い出す前提で、
// 無い場合は401
func (u *CartIdentityUsecase) resolveGuestCart(ctx context.Context, sessionID string) (model.Cart, error) {
	if sessionID == "" {
		return model.Cart{}, NewHTTPError(http.StatusUnauthorized, "no session available for guest cart")
	}

	cart, err := u.cartRepo.GetOrCreateActiveBySessionID(ctx, sessionID, time.Now().Add(guestCartTTL))
	if err != nil {
		return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return cart, nil
}

// セッションカートを取得（マージ用）。無ければErrNotFoundを包んだ404
func (u *CartIdentityUsecase) FindSessionCart(ctx context.Context, sessionID string) (model.Cart, error) {
	cart, err := u.cartRepo.FindActiveBySessionID(ctx, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, NewHTTPError(http.StatusNotFound, "session cart not found")
	}
	if err != nil {
		return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return cart, nil
}

// ユーザーカートを取得または作成（マージ用）
func (u *CartIdentityUsecase) UserCart(ctx context.Context, userID int64) (model.Cart, error) {
	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return cart, nil
}
