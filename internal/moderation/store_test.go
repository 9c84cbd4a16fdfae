package moderation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-test/deep"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rvchat/rvserver/internal/core"
)

// Creates a fresh SQLite database for every test.
func setUpStore(t *testing.T) *Store {
	testDBFile := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(testDBFile), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("error creating store: %s", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_BanAndUnban(t *testing.T) {
	ctx := context.Background()
	store := setUpStore(t)

	if err := store.Ban(ctx, "Troll", "Admin"); err != nil {
		t.Fatalf("Ban() unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		username string
		want     bool
	}{
		{"exact name", "Troll", true},
		{"different case", "tROLL", true},
		{"other account", "Friend", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.IsBanned(ctx, tt.username)
			if err != nil {
				t.Fatalf("IsBanned() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsBanned(%s) want = %v, got = %v", tt.username, tt.want, got)
			}
		})
	}

	removed, err := store.Unban(ctx, "troll")
	if err != nil || !removed {
		t.Fatalf("Unban() = %v, %v", removed, err)
	}
	if banned, _ := store.IsBanned(ctx, "Troll"); banned {
		t.Error("account should no longer be banned")
	}
	if removed, _ := store.Unban(ctx, "troll"); removed {
		t.Error("second Unban() should report nothing removed")
	}
}

func TestStore_BanKeepsOriginalRecord(t *testing.T) {
	ctx := context.Background()
	store := setUpStore(t)

	store.Ban(ctx, "Troll", "FirstMod")
	if err := store.Ban(ctx, "TROLL", "SecondMod"); err != nil {
		t.Fatalf("second Ban() unexpected error: %v", err)
	}

	bans, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(bans) != 1 {
		t.Fatalf("List() want 1 ban, got %d", len(bans))
	}

	got := []string{bans[0].Username, bans[0].DisplayName, bans[0].BannedBy}
	want := []string{core.Fold("Troll"), "Troll", "FirstMod"}
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}
}

func TestStore_Find_NotFound(t *testing.T) {
	store := setUpStore(t)

	ban, err := store.Find(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if ban != nil {
		t.Errorf("Find() want nil, got %+v", ban)
	}
}

func TestOpen_UnsupportedEngine(t *testing.T) {
	cfg := &core.Config{}
	cfg.Database.Engine = "oracle"

	if _, err := Open(cfg); err == nil {
		t.Error("Open() expected an error for an unknown engine")
	}
}

func TestOpen_SQLite(t *testing.T) {
	cfg := &core.Config{}
	cfg.Database.Engine = "sqlite"
	cfg.Database.Filename = filepath.Join(t.TempDir(), "bans.db")

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer store.Close()

	if err := store.Ban(context.Background(), "someone", "mod"); err != nil {
		t.Errorf("Ban() unexpected error: %v", err)
	}
}
