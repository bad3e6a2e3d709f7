package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStore_GetHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM fa2_kv").
		WithArgs("fa2_balances").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"alice":{"1":10}}`)))

	store := New(db)
	value, ok, err := store.Get(context.Background(), "fa2_balances")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || string(value) != `{"alice":{"1":10}}` {
		t.Fatalf("get returned ok=%t value=%s", ok, value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_GetMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM fa2_kv").
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	store := New(db)
	_, ok, err := store.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("missing key reported as present")
	}
}

func TestStore_SetUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO fa2_kv").
		WithArgs("fa2_minter", []byte("alice")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := New(db)
	if err := store.Set(context.Background(), "fa2_minter", []byte("alice")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fa2_kv").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := New(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
}
