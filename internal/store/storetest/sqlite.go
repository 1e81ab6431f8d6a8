// Package storetest opens throwaway in-memory databases for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"devicemail/internal/db"
	"devicemail/internal/store"

	"github.com/google/uuid"
)

// New returns a migrated store backed by a private in-memory sqlite database.
func New(t testing.TB) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.OpenGorm(db.Config{Driver: db.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the shared in-memory database alive and avoids
	// table-lock errors between pooled connections.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return st
}
