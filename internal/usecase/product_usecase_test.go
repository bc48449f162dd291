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

// =====================
// Public: List / Detail
// =====================

func TestProductUsecase_ListPublicProducts_InvalidPage(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProductRepoMock))

	_, err := uc.ListPublicProducts(context.Background(), usecase.ListProductsInput{Page: 0, Limit: 20})
	assertErrContains(t, err, "invalid page")
}

func TestProductUsecase_ListPublicProducts_InvalidLimit(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProductRepoMock))

	_, err := uc.ListPublicProducts(context.Background(), usecase.ListProductsInput{Page: 1, Limit: 101})
	assertErrContains(t, err, "invalid limit")
}

func TestProductUsecase_ListPublicProducts_InvalidPriceBand(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProductRepoMock))

	minP := money("10.00")
	maxP := money("5.00")
	_, err := uc.ListPublicProducts(context.Background(), usecase.ListProductsInput{
		Page: 1, Limit: 20, MinPrice: &minP, MaxPrice: &maxP,
	})
	assertErrContains(t, err, "min_price must be <= max_price")
}

func TestProductUsecase_ListPublicProducts_Success(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProductRepoMock)
	uc := usecase.NewProductUsecase(pRepo)

	in := usecase.ListProductsInput{Page: 1, Limit: 20, Q: "coffee", Sort: "new"}
	q := repo.ProductListQuery{Page: 1, Limit: 20, Q: "coffee", Sort: "new"}

	items := []model.Product{
		{ID: 1, Name: "A", IsActive: true},
	}
	pRepo.On("ListPublic", mock.Anything, q).Return(items, int64(1), nil)

	out, err := uc.ListPublicProducts(ctx, in)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 20, out.Limit)
	assert.Equal(t, 1, len(out.Items))

	pRepo.AssertExpectations(t)
}

func TestProductUsecase_GetProductDetail_NotFound_WhenInactive(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProductRepoMock)
	uc := usecase.NewProductUsecase(pRepo)

	pRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, IsActive: false}, nil)

	_, err := uc.GetProductDetail(ctx, 1)
	assertErrContains(t, err, "not found")
}

func TestProductUsecase_GetProductDetail_Success(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProductRepoMock)
	uc := usecase.NewProductUsecase(pRepo)

	pRepo.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, IsActive: true}, nil)

	p, err := uc.GetProductDetail(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)

	pRepo.AssertExpectations(t)
}

// =====================
// Admin: Product CRUD
// =====================

func TestProductUsecase_AdminCreateProduct_Unauthorized(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProductRepoMock))

	_, err := uc.AdminCreateProduct(context.Background(), 0, usecase.AdminProductInput{Name: "x", Price: money("1.00")})
	assertErrContains(t, err, "unauthorized")
}

func TestProductUsecase_AdminCreateProduct_Validation(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProductRepoMock))

	_, err := uc.AdminCreateProduct(context.Background(), 1, usecase.AdminProductInput{Name: " ", Price: money("1.00")})
	assertErrContains(t, err, "name required")

	_, err = uc.AdminCreateProduct(context.Background(), 1, usecase.AdminProductInput{Name: "x", Price: money("-1.00")})
	assertErrContains(t, err, "price must be >= 0")
}

func TestProductUsecase_AdminCreateProduct_Success(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProductRepoMock)
	uc := usecase.NewProductUsecase(pRepo)

	pRepo.On("Create", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
		return p.Name == "Coffee" && p.Price.Equal(money("100.00"))
	})).Return(model.Product{ID: 123}, nil)

	id, err := uc.AdminCreateProduct(ctx, 1, usecase.AdminProductInput{
		Name:     " Coffee ",
		Price:    money("100.00"),
		IsActive: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(123), id)

	pRepo.AssertExpectations(t)
}

func TestProductUsecase_AdminDeleteProduct_NotFound(t *testing.T) {
	ctx := context.Background()

	pRepo := new(ProductRepoMock)
	uc := usecase.NewProductUsecase(pRepo)

	pRepo.On("SoftDelete", mock.Anything, int64(99)).Return(repo.ErrNotFound)

	err := uc.AdminDeleteProduct(ctx, 1, 99)
	assertErrContains(t, err, "not found")
}
