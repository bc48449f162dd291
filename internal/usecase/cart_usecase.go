package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase はカート本体と明細のCRUDを担当します。
// 各操作は1回の呼び出しで完結するトランザクション（複数呼び出しに跨るTxは前提にしない）。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

// 明細のレスポンス。priceはスナップショット価格を返す
type CartItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CartSummary struct {
	TotalItems    int             `json:"total_items"`
	TotalQuantity int64           `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type CartResponse struct {
	ID        int64              `json:"id"`
	UserID    *int64             `json:"user_id,omitempty"`
	SessionID *string            `json:"session_id,omitempty"`
	Status    model.CartStatus   `json:"status"`
	Items     []CartItemResponse `json:"items"`
	Summary   CartSummary        `json:"summary"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

type AddItemInput struct {
	ProductID int64
	Quantity  int64
}

// 数量更新の結果。
// 「削除された」と「見つからない」を呼び出し側が混同しないよう明示的に分ける
// （見つからない場合はerrで404が返る）。
type UpdateItemResult struct {
	Removed bool
	Item    *CartItemResponse
}

type BulkItemUpdate struct {
	ID       int64 `json:"id"`
	Quantity int64 `json:"quantity"`
}

// 金額は小数2桁・四捨五入（round half up）で統一
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// GetCartView はカートと明細・集計をまとめて返す
func (u *CartUsecase) GetCartView(ctx context.Context, cartID int64) (CartResponse, error) {
	cart, err := u.cartRepo.FindByID(ctx, cartID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart)
}

// AddItem はカートに商品を追加（同一商品は数量加算）。
// unit_priceは追加時点のカタログ価格のスナップショット。
func (u *CartUsecase) AddItem(ctx context.Context, cartID int64, in AddItemInput) (CartItemResponse, error) {
	if in.ProductID <= 0 {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 || in.Quantity > 99 {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	if _, err := u.cartRepo.FindByID(ctx, cartID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartItemResponse{}, NewHTTPError(http.StatusNotFound, "cart not found")
		}
		return CartItemResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 商品チェック（スナップショット価格の出どころ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartItemResponse{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return CartItemResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	itemID, err := u.upsertItem(ctx, cartID, p, in.Quantity)
	if err != nil {
		return CartItemResponse{}, err
	}

	if err := u.cartRepo.Touch(ctx, cartID); err != nil {
		return CartItemResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	item, err := u.cartItemRepo.FindByID(ctx, itemID)
	if err != nil {
		return CartItemResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.buildItemResponse(ctx, item), nil
}

// 既存明細は加算、無ければ新規。
// 同時追加で新規作成が一意制約に競合したら、既存行を読み直して加算に切り替える。
func (u *CartUsecase) upsertItem(ctx context.Context, cartID int64, p model.Product, qty int64) (int64, error) {
	existing, err := u.cartItemRepo.FindByCartAndProduct(ctx, cartID, p.ID)
	if err == nil {
		// 加算。書き込み時点では99の上限は掛けない（validate/optimizeが丸める）
		if err := u.cartItemRepo.UpdateQuantity(ctx, existing.ID, existing.Quantity+qty); err != nil {
			return 0, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return existing.ID, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	newItem := model.CartItem{
		CartID:    cartID,
		ProductID: p.ID,
		Quantity:  qty,
		UnitPrice: p.Price,
	}
	insErr := u.cartItemRepo.Insert(ctx, &newItem)
	if insErr == nil {
		return newItem.ID, nil
	}
	if !errors.Is(insErr, repo.ErrConflict) {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 競合＝他リクエストが先に入れた。読み直して加算
	existing, err = u.cartItemRepo.FindByCartAndProduct(ctx, cartID, p.ID)
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := u.cartItemRepo.UpdateQuantity(ctx, existing.ID, existing.Quantity+qty); err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return existing.ID, nil
}

// UpdateItemQuantity は数量変更。0以下は削除（Removed=true）。
func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, cartID int64, cartItemID int64, qty int64) (UpdateItemResult, error) {
	if qty > 99 {
		return UpdateItemResult{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	item, err := u.findOwnedItem(ctx, cartID, cartItemID)
	if err != nil {
		return UpdateItemResult{}, err
	}

	if qty <= 0 {
		if err := u.cartItemRepo.DeleteByID(ctx, item.ID); err != nil {
			return UpdateItemResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := u.cartRepo.Touch(ctx, cartID); err != nil {
			return UpdateItemResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return UpdateItemResult{Removed: true}, nil
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, item.ID, qty); err != nil {
		return UpdateItemResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := u.cartRepo.Touch(ctx, cartID); err != nil {
		return UpdateItemResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	item.Quantity = qty
	item.UpdatedAt = time.Now()
	resp := u.buildItemResponse(ctx, item)
	return UpdateItemResult{Item: &resp}, nil
}

// RemoveItem は明細を削除
func (u *CartUsecase) RemoveItem(ctx context.Context, cartID int64, cartItemID int64) error {
	item, err := u.findOwnedItem(ctx, cartID, cartItemID)
	if err != nil {
		return err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, item.ID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := u.cartRepo.Touch(ctx, cartID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// ClearCart は明細を全削除（カート本体は残す）
func (u *CartUsecase) ClearCart(ctx context.Context, cartID int64) error {
	err := u.cartRepo.Clear(ctx, cartID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "cart not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// BulkUpdate は複数明細の数量をまとめて更新して、更新後のカートを返す。
// リスト形式が不正なら400。存在しない明細はスキップする
func (u *CartUsecase) BulkUpdate(ctx context.Context, cartID int64, updates []BulkItemUpdate) (CartResponse, error) {
	if len(updates) == 0 || len(updates) > 100 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid items")
	}
	for _, up := range updates {
		if up.ID <= 0 || up.Quantity < 1 || up.Quantity > 99 {
			return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid items")
		}
	}

	for _, up := range updates {
		item, err := u.cartItemRepo.FindByID(ctx, up.ID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if item.CartID != cartID {
			continue
		}
		if err := u.cartItemRepo.UpdateQuantity(ctx, item.ID, up.Quantity); err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}

	if err := u.cartRepo.Touch(ctx, cartID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.GetCartView(ctx, cartID)
}

// Summary は集計のみを返す
func (u *CartUsecase) Summary(ctx context.Context, cartID int64) (CartSummary, error) {
	if _, err := u.cartRepo.FindByID(ctx, cartID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartSummary{}, NewHTTPError(http.StatusNotFound, "cart not found")
		}
		return CartSummary{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartSummary{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return summarize(items), nil
}

// total_items=行数 / total_quantity=数量合計 / subtotal=Σ 数量×単価（2桁丸め）
func summarize(items []model.CartItem) CartSummary {
	var totalQty int64
	subtotal := decimal.Zero

	for _, it := range items {
		totalQty += it.Quantity
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
	}

	return CartSummary{
		TotalItems:    len(items),
		TotalQuantity: totalQty,
		Subtotal:      roundMoney(subtotal),
	}
}

// カートに属する明細を取得。属していなければ404
func (u *CartUsecase) findOwnedItem(ctx context.Context, cartID int64, cartItemID int64) (model.CartItem, error) {
	if cartItemID <= 0 {
		return model.CartItem{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	if err != nil {
		return model.CartItem{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if item.CartID != cartID {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	return item, nil
}

func (u *CartUsecase) buildCartResponse(ctx context.Context, cart model.Cart) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	for _, it := range items {
		respItems = append(respItems, u.buildItemResponse(ctx, it))
	}

	return CartResponse{
		ID:        cart.ID,
		UserID:    cart.UserID,
		SessionID: cart.SessionID,
		Status:    cart.Status,
		Items:     respItems,
		Summary:   summarize(items),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
		ExpiresAt: cart.ExpiresAt,
	}, nil
}

// 商品名は表示用。商品が消えていても明細は返す（validateが検出する）
func (u *CartUsecase) buildItemResponse(ctx context.Context, it model.CartItem) CartItemResponse {
	name := ""
	if p, err := u.productRepo.FindByID(ctx, it.ProductID); err == nil {
		name = p.Name
	}

	return CartItemResponse{
		ID:          it.ID,
		ProductID:   it.ProductID,
		ProductName: name,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		TotalPrice:  roundMoney(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))),
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}
