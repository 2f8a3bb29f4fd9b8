package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 割引の作成とユーザーへの付与（管理者）
type DiscountUsecase struct {
	tx     repo.TransactionManager
	users  repo.UserRepository
	clock  Clock
	logger *zap.Logger
}

func NewDiscountUsecase(tx repo.TransactionManager, users repo.UserRepository, clock Clock, logger *zap.Logger) *DiscountUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountUsecase{tx: tx, users: users, clock: clock, logger: logger}
}

type CreateDiscountInput struct {
	Code        string
	Description string
	Value       decimal.Decimal
	Type        string
	ValidFrom   *time.Time
	ValidTo     *time.Time
}

func (u *DiscountUsecase) AdminCreateDiscount(ctx context.Context, adminUserID int64, in CreateDiscountInput) (model.Discount, error) {
	if adminUserID <= 0 {
		return model.Discount{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return model.Discount{}, validationError("code required")
	}
	if in.Value.IsNegative() {
		return model.Discount{}, validationError("value must be >= 0")
	}
	t := model.DiscountType(strings.TrimSpace(in.Type))
	switch t {
	case model.DiscountTypePercentage, model.DiscountTypeFixedAmount:
	default:
		return model.Discount{}, validationError("invalid type")
	}
	if in.ValidFrom != nil && in.ValidTo != nil && in.ValidFrom.After(*in.ValidTo) {
		return model.Discount{}, validationError("valid_from must be before valid_to")
	}

	var out model.Discount
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		d, err := r.Discounts().Create(ctx, model.Discount{
			Code:        code,
			Description: in.Description,
			Value:       in.Value.Round(moneyPlaces),
			Type:        t,
			ValidFrom:   in.ValidFrom,
			ValidTo:     in.ValidTo,
		})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "code already exists")
		}
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return model.Discount{}, u.mapError("create discount", err)
	}
	return out, nil
}

// 付与（同じ組み合わせは409）
func (u *DiscountUsecase) AdminGrantDiscount(ctx context.Context, adminUserID int64, userID int64, discountID int64) (model.UserDiscount, error) {
	if adminUserID <= 0 {
		return model.UserDiscount{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if userID <= 0 || discountID <= 0 {
		return model.UserDiscount{}, validationError("invalid id")
	}

	if _, err := u.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.UserDiscount{}, NewHTTPError(http.StatusNotFound, "user not found")
		}
		return model.UserDiscount{}, u.mapError("grant discount", err)
	}

	var out model.UserDiscount
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Discounts().FindByID(ctx, discountID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "discount not found")
			}
			return err
		}

		ud, err := r.Discounts().Grant(ctx, userID, discountID)
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "already granted")
		}
		if err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionGrantDiscount,
			ResourceType: model.AuditResourceUser,
			ResourceID:   userID,
			BeforeJSON:   "{}",
			AfterJSON:    fmt.Sprintf(`{"discount_id":%d}`, discountID),
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return err
		}

		out = ud
		return nil
	})
	if err != nil {
		return model.UserDiscount{}, u.mapError("grant discount", err)
	}
	return out, nil
}

func (u *DiscountUsecase) mapError(op string, err error) error {
	if ae, ok := AsAppError(err); ok {
		return ae
	}
	u.logger.Error(op+" failed", zap.Error(err))
	return internalError()
}
