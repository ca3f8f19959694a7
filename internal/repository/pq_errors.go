package repository

import (
	"errors"
	"fmt"

	"github.com/GreaLake/checkIn/internal/domain"

	"github.com/lib/pq"
)

// mapPQError 把数据库约束错误映射为业务错误，其余视为存储不可用（可重试）
func mapPQError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			if pqErr.Constraint == "checkin_entries_one_open" {
				return domain.ErrAlreadyOpen
			}
		case "check_violation":
			if pqErr.Constraint == "checkin_entries_interval_check" {
				return domain.ErrCheckoutBeforeOpen
			}
		case "foreign_key_violation":
			return domain.ErrUnknownProject
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return domain.Transport(fmt.Errorf("failed to %s: %w", op, err))
}
