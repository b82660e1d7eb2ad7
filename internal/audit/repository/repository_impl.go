package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/acquiring/internal/audit/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.OperationEntry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO acquiring_payment_operations (
			id, payment_id, actor_id, type, request_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.PaymentID,
		entry.ActorID,
		entry.Type,
		entry.Request,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) SetResponse(ctx context.Context, db *gorm.DB, id snowflake.ID, response []byte, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE acquiring_payment_operations
		 SET response_json = ?, updated_at = ?
		 WHERE id = ? AND response_json IS NULL AND error_message IS NULL`,
		datatypes.JSON(response),
		at,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetError(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE acquiring_payment_operations
		 SET error_message = ?, updated_at = ?
		 WHERE id = ? AND response_json IS NULL AND error_message IS NULL`,
		message,
		at,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.OperationEntry, error) {
	var entry domain.OperationEntry
	err := db.WithContext(ctx).Where("id = ?", id).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.OperationEntry, error) {
	var entries []*domain.OperationEntry
	stmt := db.WithContext(ctx).Model(&domain.OperationEntry{}).
		Where("payment_id = ?", filter.PaymentID)

	if opType := strings.TrimSpace(string(filter.Type)); opType != "" {
		stmt = stmt.Where("type = ?", opType)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
