package postgres

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return billing.Date(t)
}

func dateFromNull(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return billing.Date(t.Time)
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalFromNull(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func nullStatus(s *billing.TwoPartTariffStatus) any {
	if s == nil {
		return nil
	}
	return int64(*s)
}

func statusFromNull(n sql.NullInt64) *billing.TwoPartTariffStatus {
	if !n.Valid {
		return nil
	}
	s := billing.TwoPartTariffStatus(n.Int64)
	return &s
}

func financialYear(ending int) (billing.FinancialYear, error) {
	return billing.NewFinancialYear(ending)
}
