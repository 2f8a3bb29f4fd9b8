package usecase

import (
	"context"
	"time"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"

	"github.com/shopspring/decimal"
)

// 金額は小数2桁
const moneyPlaces = 2

// 価格計算の1行分
type PriceLine struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

// Σ 単価 × 数量
func Subtotal(lines []PriceLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return sum.Round(moneyPlaces)
}

// 割引額をそのまま引く（typeに関係なく定額扱い、0未満でも丸めない）
func ApplyDiscount(subtotal decimal.Decimal, d *model.Discount) (total decimal.Decimal, discountAmount decimal.Decimal) {
	if d == nil {
		return subtotal.Round(moneyPlaces), decimal.Zero
	}
	amount := d.Value.Round(moneyPlaces)
	return subtotal.Sub(amount).Round(moneyPlaces), amount
}

// ユーザーに付与された割引から1つ選ぶ
type DiscountResolver struct {
	clock Clock
}

func NewDiscountResolver(clock Clock) *DiscountResolver {
	return &DiscountResolver{clock: clock}
}

// 付与ID順で最初の有効期間内の割引。無ければnil
func (d *DiscountResolver) ResolveForUser(ctx context.Context, discounts repo.DiscountRepository, userID int64) (*model.Discount, error) {
	grants, err := discounts.ListGrantedForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return firstActive(grants, d.now()), nil
}

func (d *DiscountResolver) now() time.Time {
	if d.clock == nil {
		return time.Now()
	}
	return d.clock.Now()
}

func firstActive(grants []repo.GrantedDiscount, now time.Time) *model.Discount {
	var picked *repo.GrantedDiscount
	for i := range grants {
		g := &grants[i]
		if !g.Discount.ActiveAt(now) {
			continue
		}
		if picked == nil || g.GrantID < picked.GrantID {
			picked = g
		}
	}
	if picked == nil {
		return nil
	}
	disc := picked.Discount
	return &disc
}
