package usecase_test

import (
	"context"
	"testing"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
	"shop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newIdentityUC() (*usecase.CartIdentityUsecase, *CartRepoMock, *CartItemRepoMock, *ProductRepoMock) {
	cartRepo := new(CartRepoMock)
	itemRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)

	txm := txManagerStub{repos: txReposStub{carts: cartRepo, items: itemRepo, products: productRepo}}
	cartUC := usecase.NewCartUsecase(cartRepo, itemRepo, productRepo)
	resolution := usecase.NewCartResolutionUsecase(txm, cartRepo, itemRepo, productRepo, cartUC)

	return usecase.NewCartIdentityUsecase(cartRepo, itemRepo, resolution), cartRepo, itemRepo, productRepo
}

func TestResolveCart_GuestWithoutSession(t *testing.T) {
	uc, _, _, _ := newIdentityUC()

	_, err := uc.ResolveCart(context.Background(), nil, "")
	assertErrContains(t, err, "no session available for guest cart")
}

func TestResolveCart_GuestGetsSessionCart(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, _, _ := newIdentityUC()

	sid := "guest-token"
	cartRepo.On("GetOrCreateActiveBySessionID", mock.Anything, sid, mock.Anything).
		Return(model.Cart{ID: 2, SessionID: &sid, Status: model.CartStatusActive}, nil)

	cart, err := uc.ResolveCart(ctx, nil, sid)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), cart.ID)

	cartRepo.AssertExpectations(t)
}

// ログイン済みでセッションカートが無いときはユーザーカートだけ返す
func TestResolveCart_AuthenticatedNoSessionCart(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, _, _ := newIdentityUC()

	userID := int64(10)
	cartRepo.On("GetOrCreateActiveByUserID", mock.Anything, userID).
		Return(model.Cart{ID: 1, UserID: &userID, Status: model.CartStatusActive}, nil)
	cartRepo.On("FindActiveBySessionID", mock.Anything, "tok").
		Return(model.Cart{}, repo.ErrNotFound)

	cart, err := uc.ResolveCart(ctx, &userID, "tok")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), cart.ID)
}

// 明細のあるセッションカートはユーザーカートへマージされる
func TestResolveCart_AuthenticatedMergesSessionCart(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, itemRepo, productRepo := newIdentityUC()

	userID := int64(10)
	sid := "tok"
	userCart := model.Cart{ID: 1, UserID: &userID, Status: model.CartStatusActive}
	sessionCart := model.Cart{ID: 2, SessionID: &sid, Status: model.CartStatusActive}

	cartRepo.On("GetOrCreateActiveByUserID", mock.Anything, userID).Return(userCart, nil)
	cartRepo.On("FindActiveBySessionID", mock.Anything, sid).Return(sessionCart, nil)
	itemRepo.On("ListByCartID", mock.Anything, int64(2)).Return([]model.CartItem{
		{ID: 10, CartID: 2, ProductID: 7, Quantity: 1, UnitPrice: money("10.00")},
	}, nil)

	// マージ本体
	cartRepo.On("FindByID", mock.Anything, int64(2)).Return(sessionCart, nil)
	cartRepo.On("FindByID", mock.Anything, int64(1)).Return(userCart, nil)
	itemRepo.On("ListByCartID", mock.Anything, int64(1)).Return([]model.CartItem{}, nil).Once()
	itemRepo.On("Reassign", mock.Anything, int64(10), int64(1)).Return(nil)
	cartRepo.On("UpdateStatus", mock.Anything, int64(2), model.CartStatusAbandoned).Return(nil)
	cartRepo.On("Touch", mock.Anything, int64(1)).Return(nil)

	// マージ後のビュー取得と再取得
	itemRepo.On("ListByCartID", mock.Anything, int64(1)).Return([]model.CartItem{
		{ID: 10, CartID: 1, ProductID: 7, Quantity: 1, UnitPrice: money("10.00")},
	}, nil)
	productRepo.On("FindByID", mock.Anything, int64(7)).Return(model.Product{ID: 7, Name: "Coffee"}, nil)

	cart, err := uc.ResolveCart(ctx, &userID, sid)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), cart.ID)

	cartRepo.AssertExpectations(t)
	itemRepo.AssertExpectations(t)
}

// マージに失敗してもリクエストは落とさず未マージのユーザーカートで続行
func TestResolveCart_MergeFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, itemRepo, _ := newIdentityUC()

	userID := int64(10)
	sid := "tok"
	userCart := model.Cart{ID: 1, UserID: &userID, Status: model.CartStatusActive}
	sessionCart := model.Cart{ID: 2, SessionID: &sid, Status: model.CartStatusActive}

	cartRepo.On("GetOrCreateActiveByUserID", mock.Anything, userID).Return(userCart, nil)
	cartRepo.On("FindActiveBySessionID", mock.Anything, sid).Return(sessionCart, nil)
	itemRepo.On("ListByCartID", mock.Anything, int64(2)).Return([]model.CartItem{
		{ID: 10, CartID: 2, ProductID: 7, Quantity: 1, UnitPrice: money("10.00")},
	}, nil)

	// マージはsourceの取得で失敗する
	cartRepo.On("FindByID", mock.Anything, int64(2)).Return(model.Cart{}, repo.ErrNotFound)

	cart, err := uc.ResolveCart(ctx, &userID, sid)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), cart.ID)
}

// セッションカートがユーザーカート自身ならマージしない
func TestResolveCart_SameCartNoMerge(t *testing.T) {
	ctx := context.Background()
	uc, cartRepo, itemRepo, _ := newIdentityUC()

	userID := int64(10)
	cart := model.Cart{ID: 1, UserID: &userID, Status: model.CartStatusActive}

	cartRepo.On("GetOrCreateActiveByUserID", mock.Anything, userID).Return(cart, nil)
	cartRepo.On("FindActiveBySessionID", mock.Anything, "tok").Return(cart, nil)

	out, err := uc.ResolveCart(ctx, &userID, "tok")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), out.ID)

	itemRepo.AssertNotCalled(t, "ListByCartID", mock.Anything, mock.Anything)
}
