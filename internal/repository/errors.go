// internal/repository/errors.go
package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// isUniqueViolation は一意制約違反かどうかをドライバ横断で判定します。
// 本番(Postgres)は pgconn のSQLSTATE 23505、テスト(SQLite)は
// gorm の翻訳済みエラーまたはドライバのメッセージで判定する。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
