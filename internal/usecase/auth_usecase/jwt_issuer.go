package auth

import (
	"time"

	"shop/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

// アクセストークンの有効期限
const accessTokenTTL = 15 * time.Minute

// HS256でアクセストークンを発行する
type HS256AccessTokenIssuer struct {
	secret string
}

func NewHS256AccessTokenIssuer(secret string) *HS256AccessTokenIssuer {
	return &HS256AccessTokenIssuer{secret: secret}
}

// jwt発行
func (i *HS256AccessTokenIssuer) Issue(userID int64, role model.Role, now time.Time) (string, time.Time, error) {
	exp := now.Add(accessTokenTTL)

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(i.secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, exp, nil
}
