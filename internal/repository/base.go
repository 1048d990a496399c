// Package repository implements the data access layer for the blog.
package repository

import (
	"errors"
	"strings"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
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
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// lookupError maps a single-row lookup failure onto an AppError.
func lookupError(err error, resource string, key any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, key)
	}
	return models.NewInternalError(err)
}

// writeError maps an insert or update failure onto an AppError. Unique
// violations become conflicts carrying msg.
func writeError(err error, msg string) error {
	if isUniqueConstraintError(err) {
		return models.NewConflictError(msg)
	}
	return models.NewInternalError(err)
}

// incrementExpr and decrementExpr update counters in SQL. The decrement
// floors at zero and works on both postgres and sqlite.
func incrementExpr(column string) any {
	return gorm.Expr(column + " + 1")
}

func decrementExpr(column string) any {
	return gorm.Expr("CASE WHEN " + column + " > 0 THEN " + column + " - 1 ELSE 0 END")
}

// likeClause matches column case-insensitively against a containsPattern.
func likeClause(column string) string {
	return "LOWER(" + column + ") LIKE ? ESCAPE '\\'"
}

// containsPattern builds a case-insensitive LIKE pattern for q.
func containsPattern(q string) string {
	q = strings.ToLower(q)
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// toggleRow deletes the row matching where, or creates row when none
// existed. It reports whether the row exists afterwards.
func toggleRow(tx *gorm.DB, model any, row any, where string, args ...any) (bool, error) {
	res := tx.Where(where, args...).Delete(model)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := tx.Create(row).Error; err != nil {
		return false, err
	}
	return true, nil
}

// countBy groups rows of model by column and counts them.
func countBy(db *gorm.DB, model any, column string, scope func(*gorm.DB) *gorm.DB) (map[uint]int64, error) {
	type row struct {
		GroupKey uint
		Total    int64
	}
	var rows []row
	q := db.Model(model).Select(column + " AS group_key, COUNT(*) AS total")
	if scope != nil {
		q = scope(q)
	}
	if err := q.Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Total
	}
	return out, nil
}
