package repository

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのACTIVEカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	return r.getOrCreate(ctx,
		func(tx *gorm.DB) *gorm.DB {
			return tx.Where("user_id = ? AND status = ?", userID, model.CartStatusActive)
		},
		func(now time.Time) model.Cart {
			return model.Cart{
				UserID:    &userID,
				Status:    model.CartStatusActive,
				CreatedAt: now,
				UpdatedAt: now,
			}
		},
	)
}

// セッションのACTIVEカートを取得し、無ければ作成。
// ゲストカートなので作成時にexpires_atを必ず入れる。
func (r *CartGormRepository) GetOrCreateActiveBySessionID(ctx context.Context, sessionID string, expiresAt time.Time) (model.Cart, error) {
	return r.getOrCreate(ctx,
		func(tx *gorm.DB) *gorm.DB {
			return tx.Where("session_id = ? AND status = ?", sessionID, model.CartStatusActive)
		},
		func(now time.Time) model.Cart {
			return model.Cart{
				SessionID: &sessionID,
				Status:    model.CartStatusActive,
				CreatedAt: now,
				UpdatedAt: now,
				ExpiresAt: &expiresAt,
			}
		},
	)
}

// トランザクションで探す→無ければ作る。
// 作成が一意制約で競合したら読み直して成功扱いにする。
func (r *CartGormRepository) getOrCreate(
	ctx context.Context,
	where func(tx *gorm.DB) *gorm.DB,
	build func(now time.Time) model.Cart,
) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := where(tx.Clauses(clause.Locking{Strength: "UPDATE"})).
			Order("id desc").
			First(&cart).Error

		if findErr == nil {
			// 触ったカートはupdated_atを更新。返すstructにも同じ値を反映する
			now := time.Now()
			if err := tx.Model(&model.Cart{}).
				Where("id = ?", cart.ID).
				Update("updated_at", now).Error; err != nil {
				return err
			}
			cart.UpdatedAt = now
			return nil
		}

		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		// 無ければ作る
		newCart := build(time.Now())
		if err := tx.Create(&newCart).Error; err != nil {
			retryErr := where(tx).Order("id desc").First(&cart).Error
			if retryErr == nil {
				return nil
			}
			return err
		}

		cart = newCart
		return nil
	})

	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// ユーザーのACTIVEカートを取得
func (r *CartGormRepository) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	return r.findActive(ctx, "user_id = ?", userID)
}

// セッションのACTIVEカートを取得
func (r *CartGormRepository) FindActiveBySessionID(ctx context.Context, sessionID string) (model.Cart, error) {
	return r.findActive(ctx, "session_id = ?", sessionID)
}

func (r *CartGormRepository) findActive(ctx context.Context, cond string, arg interface{}) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Where("status = ?", model.CartStatusActive).
		Order("id desc").
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// IDでカートを取得
func (r *CartGormRepository) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("id = ?", cartID).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// updated_atだけを更新
func (r *CartGormRepository) Touch(ctx context.Context, cartID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", time.Now())

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// carts.statusを更新
func (r *CartGormRepository) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 指定カートの明細を全削除。カート本体は残す
func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart model.Cart
		if err := tx.Where("id = ?", cartID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrNotFound
			}
			return err
		}

		//cart_itemsを全削除
		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		return tx.Model(&model.Cart{}).
			Where("id = ?", cartID).
			Update("updated_at", time.Now()).Error
	})
}

// カート本体を削除。明細もまとめて消す
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&model.Cart{}, cartID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

// 掃除対象のABANDONEDカートを取得。ACTIVE/EXPIREDは対象外
func (r *CartGormRepository) ListAbandonedBefore(ctx context.Context, cutoff time.Time) ([]model.Cart, error) {
	var carts []model.Cart

	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.CartStatusAbandoned, cutoff).
		Order("id asc").
		Find(&carts).Error; err != nil {
		return []model.Cart{}, err
	}

	return carts, nil
}

// 期限切れのACTIVEカートをEXPIREDへ遷移。削除はしない
func (r *CartGormRepository) ExpireActiveBefore(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.CartStatusActive, now).
		Updates(map[string]interface{}{
			"status":     model.CartStatusExpired,
			"updated_at": now,
		})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
