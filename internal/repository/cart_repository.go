package repository

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"
)

// カート・商品が見つからない
var ErrNotFound = errors.New("not found")

// 一意制約違反（同時作成の競合）。呼び出し側は再読込して成功扱いにする
var ErrConflict = errors.New("conflict")

// ユーザーカートとセッションカートの検索は別メソッドに分ける。
// nullableカラムのOR検索にすると一意性の不変条件が個別に守れなくなる。
type CartRepository interface {
	GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// ゲストカートは作成時にexpires_atを必ず設定する
	GetOrCreateActiveBySessionID(ctx context.Context, sessionID string, expiresAt time.Time) (model.Cart, error)
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindActiveBySessionID(ctx context.Context, sessionID string) (model.Cart, error)
	FindByID(ctx context.Context, cartID int64) (model.Cart, error)
	Touch(ctx context.Context, cartID int64) error
	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error
	// 明細を全削除。カート本体は残す
	Clear(ctx context.Context, cartID int64) error
	// カート本体を削除（明細もカスケード削除）
	DeleteByID(ctx context.Context, cartID int64) error
	// 放置カートの掃除対象（ABANDONEDのみ）
	ListAbandonedBefore(ctx context.Context, cutoff time.Time) ([]model.Cart, error)
	// 期限切れACTIVEをEXPIREDへ遷移（削除はしない）。遷移件数を返す
	ExpireActiveBefore(ctx context.Context, now time.Time) (int64, error)
}
