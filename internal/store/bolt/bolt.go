// Package bolt provides a BoltDB-backed order store.
//
// Orders live in the "orders" bucket keyed by big-endian order ID. Refunds
// live in the "refunds" bucket keyed by order ID followed by refund ID, so the
// refunds of one order are a contiguous key range. Values are JSON.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

var (
	ordersBucket  = []byte("orders")
	refundsBucket = []byte("refunds")
)

// Store wraps a BoltDB database and implements store.Repository.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (or creates) a BoltDB database at path and ensures the buckets
// exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{ordersBucket, refundsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: create buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func refundKey(orderID, refundID int64) []byte {
	return append(itob(orderID), itob(refundID)...)
}

// GetOrder implements store.Repository.
func (s *Store) GetOrder(_ context.Context, id int64) (*store.Order, error) {
	var order store.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(ordersBucket).Get(itob(id))
		if v == nil {
			return fmt.Errorf("order %d: %w", id, store.ErrNotFound)
		}
		return json.Unmarshal(v, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveOrder implements store.Repository.
func (s *Store) SaveOrder(_ context.Context, order *store.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("bolt: encode order %d: %w", order.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ordersBucket).Put(itob(order.ID), data)
	})
}

// CreateRefund implements store.Repository.
func (s *Store) CreateRefund(_ context.Context, req store.RefundRequest) (*store.Refund, error) {
	var refund *store.Refund
	err := s.db.Update(func(tx *bolt.Tx) error {
		v := tx.Bucket(ordersBucket).Get(itob(req.OrderID))
		if v == nil {
			return fmt.Errorf("order %d: %w", req.OrderID, store.ErrNotFound)
		}
		var order store.Order
		if err := json.Unmarshal(v, &order); err != nil {
			return err
		}

		rb := tx.Bucket(refundsBucket)
		existing, err := listRefunds(rb, req.OrderID)
		if err != nil {
			return err
		}
		if err := store.ValidateRefund(&order, existing, req.Amount); err != nil {
			return err
		}

		seq, err := rb.NextSequence()
		if err != nil {
			return err
		}
		refund = &store.Refund{
			ID:        int64(seq),
			OrderID:   req.OrderID,
			Amount:    req.Amount,
			Reason:    req.Reason,
			CreatedAt: s.now(),
		}
		data, err := json.Marshal(refund)
		if err != nil {
			return err
		}
		return rb.Put(refundKey(refund.OrderID, refund.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// SaveRefund implements store.Repository. The refund must already exist.
func (s *Store) SaveRefund(_ context.Context, refund *store.Refund) error {
	data, err := json.Marshal(refund)
	if err != nil {
		return fmt.Errorf("bolt: encode refund %d: %w", refund.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		rb := tx.Bucket(refundsBucket)
		key := refundKey(refund.OrderID, refund.ID)
		if rb.Get(key) == nil {
			return fmt.Errorf("refund %d: %w", refund.ID, store.ErrNotFound)
		}
		return rb.Put(key, data)
	})
}

// ListRefunds implements store.Repository.
func (s *Store) ListRefunds(_ context.Context, orderID int64) ([]*store.Refund, error) {
	var refunds []*store.Refund
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(ordersBucket).Get(itob(orderID)) == nil {
			return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
		}
		var err error
		refunds, err = listRefunds(tx.Bucket(refundsBucket), orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

func listRefunds(rb *bolt.Bucket, orderID int64) ([]*store.Refund, error) {
	var out []*store.Refund
	prefix := itob(orderID)
	c := rb.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var r store.Refund
		if err := json.Unmarshal(v, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, nil
}
