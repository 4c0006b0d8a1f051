package errors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
// 条件更新（WHERE updated_at = 旧值）影响行数为 0 时返回
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// pgUniqueViolation PostgreSQL unique_violation 错误码
const pgUniqueViolation = "23505"

// IsUniqueViolation 判断错误是否为唯一约束冲突
// 同时识别 gorm TranslateError 之后的 ErrDuplicatedKey 与原始 pgconn 错误
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
