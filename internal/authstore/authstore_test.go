// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package authstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/sablecast/sable/internal/models"
	"github.com/sablecast/sable/internal/session"
)

// Both implementations must satisfy the session manager's repository port.
var (
	_ session.AuthenticationRepository = (*BadgerRepository)(nil)
	_ session.AuthenticationRepository = (*MemoryRepository)(nil)
)

// Helper function to create a test BadgerDB instance
func createTestBadgerDB(t *testing.T) (*badger.DB, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "badger-token-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging for tests
	db, err := badger.Open(opts)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(dir)
	}

	return db, cleanup
}

func testRow(id, token, userID, deviceID string, active bool, created time.Time) *models.AuthenticationInfo {
	return &models.AuthenticationInfo{
		ID:          id,
		AccessToken: token,
		DeviceID:    deviceID,
		DeviceName:  "Living Room TV",
		AppName:     "WebClient",
		AppVersion:  "1.0.0",
		UserID:      userID,
		UserName:    "alice",
		IsActive:    active,
		DateCreated: created,
	}
}

// repositories returns both implementations so every test runs against each.
func repositories(t *testing.T) map[string]session.AuthenticationRepository {
	t.Helper()

	db, cleanup := createTestBadgerDB(t)
	t.Cleanup(cleanup)

	return map[string]session.AuthenticationRepository{
		"badger": NewBadgerRepository(db),
		"memory": NewMemoryRepository(),
	}
}

func TestRepositoryCreateAndGetByToken(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			row := testRow("id-1", "ABCDEF123456", "user-1", "device-1", true, time.Now().UTC())

			if err := repo.Create(ctx, row); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			// Token lookup is case-insensitive.
			result, err := repo.Get(ctx, models.AuthenticationInfoQuery{AccessToken: "abcdef123456"})
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if result.TotalCount != 1 || len(result.Items) != 1 {
				t.Fatalf("expected exactly one row, got %d", result.TotalCount)
			}
			if result.Items[0].ID != "id-1" {
				t.Errorf("expected row id-1, got %s", result.Items[0].ID)
			}
		})
	}
}

func TestRepositoryGetFilters(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()

			rows := []*models.AuthenticationInfo{
				testRow("id-1", "token-1", "user-1", "device-1", true, now.Add(-3*time.Hour)),
				testRow("id-2", "token-2", "user-1", "device-2", true, now.Add(-2*time.Hour)),
				testRow("id-3", "token-3", "user-1", "device-1", false, now.Add(-1*time.Hour)),
				testRow("id-4", "token-4", "user-2", "device-3", true, now),
			}
			for _, row := range rows {
				if err := repo.Create(ctx, row); err != nil {
					t.Fatalf("Create failed: %v", err)
				}
			}

			active := true
			tests := []struct {
				name      string
				query     models.AuthenticationInfoQuery
				wantIDs   []string
				wantTotal int
			}{
				{
					name:      "active tokens for user newest first",
					query:     models.AuthenticationInfoQuery{UserID: "user-1", IsActive: &active},
					wantIDs:   []string{"id-2", "id-1"},
					wantTotal: 2,
				},
				{
					name:      "device filter is case-insensitive",
					query:     models.AuthenticationInfoQuery{DeviceID: "DEVICE-1", IsActive: &active},
					wantIDs:   []string{"id-1"},
					wantTotal: 1,
				},
				{
					name:      "limit trims but total is unpaged",
					query:     models.AuthenticationInfoQuery{UserID: "user-1", Limit: 1},
					wantIDs:   []string{"id-3"},
					wantTotal: 3,
				},
				{
					name:      "no match",
					query:     models.AuthenticationInfoQuery{UserID: "user-9"},
					wantIDs:   nil,
					wantTotal: 0,
				},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					result, err := repo.Get(ctx, tt.query)
					if err != nil {
						t.Fatalf("Get failed: %v", err)
					}
					if len(result.Items) != len(tt.wantIDs) {
						t.Fatalf("expected %d rows, got %d", len(tt.wantIDs), len(result.Items))
					}
					for i, want := range tt.wantIDs {
						if result.Items[i].ID != want {
							t.Errorf("row %d: expected %s, got %s", i, want, result.Items[i].ID)
						}
					}
					if result.TotalCount != tt.wantTotal {
						t.Errorf("expected total %d, got %d", tt.wantTotal, result.TotalCount)
					}
				})
			}
		})
	}
}

func TestRepositoryUpdate(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			row := testRow("id-1", "token-1", "user-1", "device-1", true, time.Now().UTC())

			if err := repo.Update(ctx, row); err == nil {
				t.Fatal("expected Update of missing row to fail")
			}

			if err := repo.Create(ctx, row); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			row.IsActive = false
			revoked := time.Now().UTC()
			row.DateRevoked = &revoked
			if err := repo.Update(ctx, row); err != nil {
				t.Fatalf("Update failed: %v", err)
			}

			inactive := false
			result, err := repo.Get(ctx, models.AuthenticationInfoQuery{IsActive: &inactive})
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if len(result.Items) != 1 || result.Items[0].ID != "id-1" {
				t.Fatalf("expected the revoked row, got %+v", result.Items)
			}
			if result.Items[0].DateRevoked == nil {
				t.Error("expected DateRevoked to persist")
			}
		})
	}
}

func TestBadgerRepositorySurvivesReopen(t *testing.T) {
	dir, err := os.MkdirTemp("", "badger-token-reopen-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()

	repo, closer, err := OpenBadgerRepository(dir)
	if err != nil {
		t.Fatalf("OpenBadgerRepository failed: %v", err)
	}
	if err := repo.Create(ctx, testRow("id-1", "token-1", "user-1", "device-1", true, time.Now().UTC())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := closer(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	repo, closer, err = OpenBadgerRepository(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer closer()

	result, err := repo.Get(ctx, models.AuthenticationInfoQuery{AccessToken: "token-1"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected token to survive reopen, got %d rows", len(result.Items))
	}
}

func TestBadgerRepositoryValueLogGC(t *testing.T) {
	dir, err := os.MkdirTemp("", "badger-token-gc-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	repo, closer, err := OpenBadgerRepository(dir)
	if err != nil {
		t.Fatalf("OpenBadgerRepository failed: %v", err)
	}
	defer closer()

	// A fresh store has nothing to rewrite; ErrNoRewrite must be swallowed.
	if err := repo.RunValueLogGC(0.5); err != nil {
		t.Fatalf("RunValueLogGC on a fresh store: %v", err)
	}
}
