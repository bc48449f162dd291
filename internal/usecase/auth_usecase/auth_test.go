package auth_test

import (
	"context"
	"testing"
	"time"

	"shop/internal/domain/model"
	"shop/internal/repository"
	auth "shop/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

var _ repository.UserRepository = (*UserRepoMock)(nil)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// =====================
// Register
// =====================

func TestRegisterUser_InvalidEmail(t *testing.T) {
	uc := auth.NewRegisterUserUsecase(new(UserRepoMock), auth.NewBcryptPasswordHasher(4), fixedClock{time.Now()})

	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "not-an-email",
		Password: "long_enough_password",
	})
	assert.Equal(t, auth.ErrInvalidEmailFormat, err)
}

func TestRegisterUser_PasswordTooShort(t *testing.T) {
	uc := auth.NewRegisterUserUsecase(new(UserRepoMock), auth.NewBcryptPasswordHasher(4), fixedClock{time.Now()})

	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "a@example.com",
		Password: "short",
	})
	assert.Equal(t, auth.ErrPasswordTooShort, err)
}

func TestRegisterUser_DuplicateEmail(t *testing.T) {
	userRepo := new(UserRepoMock)
	uc := auth.NewRegisterUserUsecase(userRepo, auth.NewBcryptPasswordHasher(4), fixedClock{time.Now()})

	userRepo.On("FindByEmail", mock.Anything, "a@example.com").
		Return(&model.User{ID: 1, Email: "a@example.com"}, nil)

	_, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "a@example.com",
		Password: "long_enough_password",
	})
	assert.Equal(t, auth.ErrEmailAlreadyExists, err)
}

func TestRegisterUser_Success(t *testing.T) {
	userRepo := new(UserRepoMock)
	uc := auth.NewRegisterUserUsecase(userRepo, auth.NewBcryptPasswordHasher(4), fixedClock{time.Now()})

	userRepo.On("FindByEmail", mock.Anything, "a@example.com").Return(nil, nil)
	userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		// 平文は保存しない
		return u.Email == "a@example.com" &&
			u.PasswordHash != "" &&
			u.PasswordHash != "long_enough_password" &&
			u.Role == model.RoleUser &&
			u.IsActive
	})).Return(nil)

	out, err := uc.Execute(context.Background(), auth.RegisterUserInput{
		Email:    "a@example.com",
		Password: "long_enough_password",
	})
	assert.NoError(t, err)
	assert.Equal(t, "a@example.com", out.User.Email)

	userRepo.AssertExpectations(t)
}

// =====================
// Login
// =====================

func TestLogin_WrongPassword(t *testing.T) {
	userRepo := new(UserRepoMock)

	hasher := auth.NewBcryptPasswordHasher(4)
	hashed, _ := hasher.Hash("correct_password_123")

	userRepo.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{
		ID: 1, Email: "a@example.com", PasswordHash: hashed, IsActive: true,
	}, nil)

	uc := auth.NewLoginUsecase(userRepo, auth.NewBcryptPasswordVerifier(),
		auth.NewHS256AccessTokenIssuer("secret"), fixedClock{time.Now()})

	_, err := uc.Execute(context.Background(), auth.LoginInput{
		Email:    "a@example.com",
		Password: "wrong_password_12345",
	})
	assert.Equal(t, auth.ErrInvalidCredentials, err)
}

func TestLogin_UnknownEmail(t *testing.T) {
	userRepo := new(UserRepoMock)
	userRepo.On("FindByEmail", mock.Anything, "a@example.com").Return(nil, nil)

	uc := auth.NewLoginUsecase(userRepo, auth.NewBcryptPasswordVerifier(),
		auth.NewHS256AccessTokenIssuer("secret"), fixedClock{time.Now()})

	_, err := uc.Execute(context.Background(), auth.LoginInput{
		Email:    "a@example.com",
		Password: "whatever_password_123",
	})
	assert.Equal(t, auth.ErrInvalidCredentials, err)
}

func TestLogin_InactiveUser(t *testing.T) {
	userRepo := new(UserRepoMock)
	userRepo.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{
		ID: 1, Email: "a@example.com", PasswordHash: "x", IsActive: false,
	}, nil)

	uc := auth.NewLoginUsecase(userRepo, auth.NewBcryptPasswordVerifier(),
		auth.NewHS256AccessTokenIssuer("secret"), fixedClock{time.Now()})

	_, err := uc.Execute(context.Background(), auth.LoginInput{
		Email:    "a@example.com",
		Password: "whatever_password_123",
	})
	assert.Equal(t, auth.ErrUserInactive, err)
}

func TestLogin_Success(t *testing.T) {
	userRepo := new(UserRepoMock)

	hasher := auth.NewBcryptPasswordHasher(4)
	hashed, _ := hasher.Hash("correct_password_123")

	now := time.Now()
	userRepo.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{
		ID: 1, Email: "a@example.com", PasswordHash: hashed, Role: model.RoleUser, IsActive: true,
	}, nil)
	userRepo.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.LastLoginAt != nil && u.LastLoginAt.Equal(now)
	})).Return(nil)

	uc := auth.NewLoginUsecase(userRepo, auth.NewBcryptPasswordVerifier(),
		auth.NewHS256AccessTokenIssuer("secret"), fixedClock{now})

	out, err := uc.Execute(context.Background(), auth.LoginInput{
		Email:    "a@example.com",
		Password: "correct_password_123",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, out.Token.AccessToken)
	assert.Greater(t, out.Token.ExpiresIn, 0)

	userRepo.AssertExpectations(t)
}

// =====================
// Profile
// =====================

func TestGetProfile_Success(t *testing.T) {
	userRepo := new(UserRepoMock)
	userRepo.On("FindByID", mock.Anything, int64(42)).Return(&model.User{
		ID: 42, Email: "a@example.com", Role: model.RoleUser, IsActive: true,
	}, nil)

	uc := auth.NewGetProfileUsecase(userRepo)

	user, err := uc.Execute(context.Background(), 42)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "a@example.com", user.Email)

	userRepo.AssertExpectations(t)
}

// 有効なtokenでもユーザーが消えていれば not found
func TestGetProfile_UserGone(t *testing.T) {
	userRepo := new(UserRepoMock)
	userRepo.On("FindByID", mock.Anything, int64(42)).Return(nil, nil)

	uc := auth.NewGetProfileUsecase(userRepo)

	_, err := uc.Execute(context.Background(), 42)
	assert.Equal(t, auth.ErrUserNotFound, err)
}

func TestGetProfile_RepoNotFound(t *testing.T) {
	userRepo := new(UserRepoMock)
	userRepo.On("FindByID", mock.Anything, int64(42)).Return(nil, repository.ErrUserNotFound)

	uc := auth.NewGetProfileUsecase(userRepo)

	_, err := uc.Execute(context.Background(), 42)
	assert.Equal(t, auth.ErrUserNotFound, err)
}

// 発行したtokenは自分のsecretで検証できて、subとroleが入っている
func TestHS256AccessTokenIssuer_RoundTrip(t *testing.T) {
	issuer := auth.NewHS256AccessTokenIssuer("secret")

	now := time.Now()
	signed, expiresAt, err := issuer.Issue(42, model.RoleAdmin, now)
	assert.NoError(t, err)
	assert.True(t, expiresAt.After(now))

	token, err := jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	assert.NoError(t, err)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
}
