package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-biometric/migrations"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRecord_GeneratesIDAndTimestamp(t *testing.T) {
	repo := setupRepo(t)

	e := NewEntry("front-desk", SourceAPI, "led", map[string]any{"color": "red"}, nil)
	if err := repo.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(e.ID) != len("aud-")+8 || e.ID[:4] != "aud-" {
		t.Errorf("ID = %q, want aud-xxxxxxxx", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 1 {
		t.Fatalf("List() = %+v, want one entry", res)
	}
	got := res.Entries[0]
	if got.ID != e.ID || got.Outcome != OutcomeOK || got.Error != "" || got.Details["color"] != "red" {
		t.Errorf("entry = %+v", got)
	}
}

func TestRecord_ErrorOutcome(t *testing.T) {
	repo := setupRepo(t)

	e := NewEntry("front-desk", SourceMQTT, "beep", nil, errors.New("sensor not ready"))
	if err := repo.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	res, err := repo.List(context.Background(), Filter{Source: SourceMQTT})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := res.Entries[0]
	if got.Outcome != OutcomeError || got.Error != "sensor not ready" || got.Details != nil {
		t.Errorf("entry = %+v", got)
	}
}

func TestRecord_Invalid(t *testing.T) {
	repo := setupRepo(t)

	tests := []struct {
		name  string
		entry Entry
	}{
		{"missing station", Entry{Action: "led", Source: SourceAPI}},
		{"missing action", Entry{StationID: "s", Source: SourceAPI}},
		{"missing source", Entry{StationID: "s", Action: "led"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entry
			if err := repo.Record(context.Background(), &e); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Record() error = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestList_FilterAndPaging(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	actions := []struct {
		action string
		source string
	}{
		{"start", SourceAPI},
		{"led", SourceMQTT},
		{"led", SourceAPI},
		{"stop", SourceAPI},
		{"led", SourceAPI},
	}
	for i, a := range actions {
		e := NewEntry("front-desk", a.source, a.action, nil, nil)
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name       string
		filter     Filter
		wantTotal  int
		wantLen    int
		wantNewest time.Time
	}{
		{"all", Filter{}, 5, 5, base.Add(4 * time.Minute)},
		{"by action", Filter{Action: "led"}, 3, 3, base.Add(4 * time.Minute)},
		{"by action and source", Filter{Action: "led", Source: SourceMQTT}, 1, 1, base.Add(time.Minute)},
		{"paged", Filter{Limit: 2, Offset: 1}, 5, 2, base.Add(3 * time.Minute)},
		{"limit clamped", Filter{Limit: 10000}, 5, 5, base.Add(4 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal || len(res.Entries) != tt.wantLen {
				t.Fatalf("total = %d, len = %d, want %d, %d", res.Total, len(res.Entries), tt.wantTotal, tt.wantLen)
			}
			if !res.Entries[0].CreatedAt.Equal(tt.wantNewest) {
				t.Errorf("newest = %v, want %v", res.Entries[0].CreatedAt, tt.wantNewest)
			}
			if res.Limit > maxListLimit {
				t.Errorf("limit = %d, want <= %d", res.Limit, maxListLimit)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	old := NewEntry("front-desk", SourceAPI, "start", nil, nil)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	recent := NewEntry("front-desk", SourceAPI, "stop", nil, nil)
	for _, e := range []*Entry{old, recent} {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) should fail")
	}
}
