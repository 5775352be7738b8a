// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

// Package authstore persists access-token rows. The Badger-backed store is
// the production implementation; the memory store backs tests and ephemeral
// deployments.
package authstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/sablecast/sable/internal/metrics"
	"github.com/sablecast/sable/internal/models"
)

// Key prefixes for BadgerDB storage
const (
	tokenKeyPrefix       = "token:"
	tokenAccessKeyPrefix = "token_access:"
)

// BadgerRepository implements the authentication repository using BadgerDB
// for durable token storage across restarts.
type BadgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository wraps an already-open BadgerDB.
func NewBadgerRepository(db *badger.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

// OpenBadgerRepository opens a BadgerDB at path and wraps it. The caller
// owns the returned closer.
func OpenBadgerRepository(path string) (*BadgerRepository, func() error, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open badger db for tokens: %w", err)
	}
	return NewBadgerRepository(db), db.Close, nil
}

// Create stores a new token row. The access-token index enables O(1) lookup
// by bearer token on every authenticated request.
func (r *BadgerRepository) Create(ctx context.Context, info *models.AuthenticationInfo) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("create", time.Since(start), err) }()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal token row: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := []byte(tokenKeyPrefix + info.ID)
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set token row: %w", err)
		}

		accessKey := []byte(tokenAccessKeyPrefix + strings.ToLower(info.AccessToken))
		if err := txn.Set(accessKey, []byte(info.ID)); err != nil {
			return fmt.Errorf("set access index: %w", err)
		}
		return nil
	})
	return err
}

// Update rewrites an existing token row.
func (r *BadgerRepository) Update(ctx context.Context, info *models.AuthenticationInfo) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("update", time.Since(start), err) }()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal token row: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := []byte(tokenKeyPrefix + info.ID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("token row %s not found", info.ID)
		} else if err != nil {
			return fmt.Errorf("get token row: %w", err)
		}
		return txn.Set(key, data)
	})
	return err
}

// Get returns token rows matching the query, newest first.
func (r *BadgerRepository) Get(ctx context.Context, query models.AuthenticationInfoQuery) (result *models.QueryResult[*models.AuthenticationInfo], err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("get", time.Since(start), err) }()

	// Bearer-token lookups take the index path; everything else scans.
	if query.AccessToken != "" {
		return r.getByAccessToken(query)
	}

	var rows []*models.AuthenticationInfo
	err = r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(tokenKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var info models.AuthenticationInfo
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			})
			if err != nil {
				return err
			}
			if matchesQuery(&info, query) {
				rows = append(rows, &info)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paginate(rows, query.Limit), nil
}

// RunValueLogGC triggers one Badger value-log GC pass. A pass that finds
// nothing worth rewriting is not an error.
func (r *BadgerRepository) RunValueLogGC(discardRatio float64) error {
	err := r.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

func (r *BadgerRepository) getByAccessToken(query models.AuthenticationInfoQuery) (*models.QueryResult[*models.AuthenticationInfo], error) {
	var info *models.AuthenticationInfo

	err := r.db.View(func(txn *badger.Txn) error {
		accessKey := []byte(tokenAccessKeyPrefix + strings.ToLower(query.AccessToken))
		item, err := txn.Get(accessKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get access index: %w", err)
		}

		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}

		row, err := txn.Get([]byte(tokenKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get token row: %w", err)
		}
		return row.Value(func(val []byte) error {
			var decoded models.AuthenticationInfo
			if err := json.Unmarshal(val, &decoded); err != nil {
				return err
			}
			info = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	var rows []*models.AuthenticationInfo
	if info != nil && matchesQuery(info, query) {
		rows = append(rows, info)
	}
	return paginate(rows, query.Limit), nil
}

// matchesQuery applies the non-token filters. An empty filter field matches
// everything; IsActive is a pointer so inactive rows can be queried.
func matchesQuery(info *models.AuthenticationInfo, query models.AuthenticationInfoQuery) bool {
	if query.AccessToken != "" && !strings.EqualFold(info.AccessToken, query.AccessToken) {
		return false
	}
	if query.UserID != "" && info.UserID != query.UserID {
		return false
	}
	if query.DeviceID != "" && !strings.EqualFold(info.DeviceID, query.DeviceID) {
		return false
	}
	if query.IsActive != nil && info.IsActive != *query.IsActive {
		return false
	}
	return true
}

func paginate(rows []*models.AuthenticationInfo, limit int) *models.QueryResult[*models.AuthenticationInfo] {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].DateCreated.After(rows[j].DateCreated)
	})

	total := len(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return &models.QueryResult[*models.AuthenticationInfo]{
		Items:      rows,
		TotalCount: total,
	}
}
