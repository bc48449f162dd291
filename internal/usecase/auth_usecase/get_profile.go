package auth

import (
	"context"
	"errors"

	"shop/internal/domain/model"
	"shop/internal/repository"
)

// トークンは有効だがユーザーが消えている（削除済みなど）
var ErrUserNotFound = errors.New("user not found")

// ログイン中ユーザー本人の情報を返す
type GetProfileUsecase struct {
	userRepo repository.UserRepository
}

func NewGetProfileUsecase(userRepo repository.UserRepository) *GetProfileUsecase {
	return &GetProfileUsecase{userRepo: userRepo}
}

func (u *GetProfileUsecase) Execute(ctx context.Context, userID int64) (model.User, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	if user == nil {
		return model.User{}, ErrUserNotFound
	}

	return *user, nil
}
