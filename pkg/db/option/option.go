// Package option holds reusable gorm query modifiers.
package option

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination orders rows newest first and fetches one extra row so
// callers can tell whether another page exists. An unreadable page token is
// treated as the first page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		stmt := db.Order("created_at desc, id desc").Limit(page.Size() + 1)
		if page.PageToken == "" {
			return stmt
		}

		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return stmt
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return stmt
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return stmt
		}

		return stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	})
}

// Compose applies opts in order.
func Compose(opts ...QueryOption) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		for _, opt := range opts {
			if opt != nil {
				db = opt.Apply(db)
			}
		}
		return db
	})
}
