// Package dbtest opens throwaway sqlite databases carrying the acquiring schema.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE acquiring_payments (
		id BIGINT PRIMARY KEY,
		bank_order_id TEXT,
		system TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE gateway_direct_payments (
		payment_id BIGINT PRIMARY KEY,
		order_number TEXT,
		amount BIGINT NOT NULL,
		currency TEXT,
		return_url TEXT NOT NULL,
		fail_url TEXT,
		description TEXT,
		client_id TEXT,
		language TEXT,
		page_view TEXT,
		json_params TEXT,
		session_timeout_secs BIGINT,
		expiration_date TEXT,
		features TEXT,
		bank_form_url TEXT
	)`,
	`CREATE UNIQUE INDEX ux_acquiring_payments_bank_order_id
		ON acquiring_payments (bank_order_id) WHERE bank_order_id IS NOT NULL`,
	walletTable("apple_pay_payments", ""),
	walletTable("samsung_pay_payments", ""),
	walletTable("google_pay_payments", `,
		client_id TEXT,
		ip TEXT,
		amount BIGINT NOT NULL,
		currency_code TEXT,
		email TEXT,
		phone TEXT,
		return_url TEXT NOT NULL,
		fail_url TEXT`),
	`CREATE TABLE acquiring_payment_operations (
		id BIGINT PRIMARY KEY,
		payment_id BIGINT NOT NULL,
		actor_id TEXT,
		type TEXT NOT NULL,
		request_json TEXT NOT NULL,
		response_json TEXT,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

func walletTable(name, extra string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		payment_id BIGINT PRIMARY KEY,
		order_number TEXT NOT NULL,
		description TEXT,
		language TEXT,
		additional_parameters TEXT,
		pre_auth BOOLEAN,
		payment_token TEXT NOT NULL%s
	)`, name, extra)
}

// Open returns a private in-memory database with every acquiring table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:acquiring_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// One connection keeps concurrent test writers from tripping shared-cache locks.
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// Drop removes a table, used to force write failures.
func Drop(t testing.TB, db *gorm.DB, table string) {
	t.Helper()
	if err := db.Exec("DROP TABLE " + table).Error; err != nil {
		t.Fatalf("drop %s: %v", table, err)
	}
}
