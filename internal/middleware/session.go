package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"shop/internal/config"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const CtxSessionIDKey = "session_id" // string

// セッションcookieの寿命
const sessionCookieMaxAge = 7 * 24 * time.Hour

// Session はゲストカート用のセッショントークンを管理するミドルウェア。
//   - cookieの値は「token.signature」形式（署名はHMAC-SHA256）
//   - 署名が一致しない、または無い場合は新しいtokenを払い出す
//   - cookieを書くのはカート系パスのリクエストだけ
func Session(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inbound := readSessionToken(c, cfg)

			sid := inbound
			if sid == "" {
				sid = uuid.NewString()
			}
			c.Set(CtxSessionIDKey, sid)

			// echoはhandler内でレスポンスを確定させるので、next前にcookieを書く
			if inbound != sid && strings.HasPrefix(c.Request().URL.Path, "/cart") {
				c.SetCookie(&http.Cookie{
					Name:     cfg.SessionCookieName,
					Value:    signSessionToken(cfg.SessionSecret, sid),
					Path:     "/",
					MaxAge:   int(sessionCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.CookieSecure(),
					SameSite: http.SameSiteLaxMode,
				})
			}

			return next(c)
		}
	}
}

// cookieを読んで署名を検証する。不正なら空文字
func readSessionToken(c echo.Context, cfg config.Config) string {
	cookie, err := c.Cookie(cfg.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	token, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok || token == "" {
		return ""
	}

	want := hmacHex(cfg.SessionSecret, token)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ""
	}
	return token
}

// 「token.signature」形式のcookie値を作る
func signSessionToken(secret, token string) string {
	return token + "." + hmacHex(secret, token)
}

func hmacHex(secret, value string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
