// Package store implements the repository contracts on PostgreSQL via database/sql and lib/pq.
package store

import (
	"context"
	"database/sql"

	"github.com/suriekke/shopeasy2-sub000/internal/database"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
)

// checkoutLockNamespace scopes per-user advisory locks taken during checkout.
const checkoutLockNamespace int32 = 7301

type Store struct {
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Catalog() repository.Catalog { return &catalogRepo{q: s.db} }
func (s *Store) Cart() repository.CartEntries { return &cartRepo{q: s.db} }
func (s *Store) Orders() repository.Orders    { return &orderRepo{q: s.db} }
func (s *Store) Users() repository.Users      { return &userRepo{q: s.db} }

func (s *Store) Atomic(ctx context.Context, fn func(tx repository.Tx) error) error {
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return fn(&txStore{tx: tx})
	})
	return database.MapError(err, "transaction")
}

func (s *Store) Ping(ctx context.Context) error {
	return database.MapError(s.db.PingContext(ctx), "ping database")
}

func (s *Store) Close() error {
	return s.db.Close()
}

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Catalog() repository.Catalog { return &catalogRepo{q: t.tx} }
func (t *txStore) Cart() repository.CartEntries { return &cartRepo{q: t.tx} }
func (t *txStore) Orders() repository.Orders    { return &orderRepo{q: t.tx} }

func (t *txStore) LockUser(ctx context.Context, userID int64) error {
	return database.MapError(database.AdvisoryXactLock(ctx, t.tx, checkoutLockNamespace, userID), "lock user")
}
