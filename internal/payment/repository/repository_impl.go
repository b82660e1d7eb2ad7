package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/smallbiznis/acquiring/pkg/db"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

var paymentColumns = map[string]struct{}{
	domain.ColumnStatus:      {},
	domain.ColumnBankOrderID: {},
}

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx}
}

func (r *repo) Create(ctx context.Context, payment *domain.Payment) error {
	if payment == nil || payment.Details == nil {
		return domain.ErrInvalidSystem
	}
	if payment.Details.System() != payment.System {
		return fmt.Errorf("%w: details for %s attached to %s payment",
			domain.ErrInvalidSystem, payment.Details.System(), payment.System)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		payment.Details.AttachTo(payment.ID)
		if err := tx.Table(payment.Details.TableName()).Create(payment.Details).Error; err != nil {
			return fmt.Errorf("insert %s details: %w", payment.System, err)
		}
		return nil
	})
}

func (r *repo) Update(ctx context.Context, id snowflake.ID, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}

	updates := make(map[string]any, len(fields)+1)
	for column, value := range fields {
		if _, ok := paymentColumns[column]; !ok {
			return false, fmt.Errorf("update payment: column %q is not updatable", column)
		}
		updates[column] = value
	}
	updates["updated_at"] = time.Now().UTC()

	stmt := r.db.WithContext(ctx).
		Table(domain.Payment{}.TableName()).
		Where("id = ?", id)
	if orderID, ok := updates[domain.ColumnBankOrderID]; ok {
		stmt = stmt.Where("(bank_order_id IS NULL OR bank_order_id = ?)", orderID)
	}

	res := stmt.Updates(updates)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return false, fmt.Errorf("%w: %v", domain.ErrDuplicateOrderID, updates[domain.ColumnBankOrderID])
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateDetails(ctx context.Context, id snowflake.ID, system domain.System, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	details, err := domain.EmptyDetails(system)
	if err != nil {
		return false, err
	}

	for column := range fields {
		if !domain.DetailColumn(system, column) {
			return false, fmt.Errorf("update %s details: column %q is not updatable", system, column)
		}
	}

	res := r.db.WithContext(ctx).
		Table(details.TableName()).
		Where("payment_id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadDetails(ctx, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) FindByStatuses(ctx context.Context, statuses []domain.Status, batchSize int) iter.Seq2[*domain.Payment, error] {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	return func(yield func(*domain.Payment, error) bool) {
		if len(values) == 0 {
			return
		}

		var lastID snowflake.ID
		for {
			var page []*domain.Payment
			err := r.db.WithContext(ctx).
				Where("status IN ?", values).
				Where("id > ?", lastID).
				Order("id ASC").
				Limit(batchSize).
				Find(&page).Error
			if err != nil {
				yield(nil, fmt.Errorf("scan payments after %s: %w", lastID, err))
				return
			}

			for _, payment := range page {
				lastID = payment.ID
				if err := r.loadDetails(ctx, payment); err != nil {
					if !yield(payment, err) {
						return
					}
					continue
				}
				if !yield(payment, nil) {
					return
				}
			}

			if len(page) < batchSize {
				return
			}
		}
	}
}

func (r *repo) loadDetails(ctx context.Context, payment *domain.Payment) error {
	details, err := domain.EmptyDetails(payment.System)
	if err != nil {
		return fmt.Errorf("payment %s: %w", payment.ID, err)
	}
	err = r.db.WithContext(ctx).
		Table(details.TableName()).
		Where("payment_id = ?", payment.ID).
		Take(details).Error
	if err != nil {
		return fmt.Errorf("load %s details for payment %s: %w", payment.System, payment.ID, err)
	}
	payment.Details = details
	return nil
}
