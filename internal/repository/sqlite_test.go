package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-emergency-dispatch/internal/config"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryDB()
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s := setupTestDB(t)
		defer s.Close()
		fn(t, s)
	})
}

func testAlert(id, institutionID string, status models.AlertStatus, createdAt time.Time) *models.Alert {
	return &models.Alert{
		ID:           id,
		Institution:  models.Institution{ID: institutionID, Name: "School " + institutionID, District: "Pune", State: "MH"},
		ReporterName: "Asha",
		Category:     models.AlertCategoryFire,
		Status:       status,
		Severity:     models.SeverityHigh,
		Location:     "Block B",
		Description:  "smoke in lab",
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func TestStore_AddAndGetAlert(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		a := testAlert("a1", "inst1", models.AlertStatusActive, now)
		a.Coordinates = &models.Coordinates{Latitude: 18.52, Longitude: 73.85}
		if err := s.AddAlert(ctx, a); err != nil {
			t.Fatalf("AddAlert failed: %v", err)
		}
		if a.Seq == 0 {
			t.Error("expected seq to be assigned")
		}

		got, err := s.GetAlert(ctx, "a1")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got.Institution.Name != "School inst1" {
			t.Errorf("expected institution name 'School inst1', got '%s'", got.Institution.Name)
		}
		if got.Coordinates == nil || got.Coordinates.Latitude != 18.52 {
			t.Errorf("expected coordinates to round trip, got %+v", got.Coordinates)
		}
		if !got.CreatedAt.Equal(now) {
			t.Errorf("expected created_at %v, got %v", now, got.CreatedAt)
		}
	})
}

func TestStore_AlertsDoNotShareCoordinates(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a := testAlert("a1", "inst1", models.AlertStatusActive, time.Now().UTC())
		a.Coordinates = &models.Coordinates{Latitude: 1, Longitude: 2}
		if err := s.AddAlert(ctx, a); err != nil {
			t.Fatalf("AddAlert failed: %v", err)
		}
		a.Coordinates.Latitude = 50

		got, err := s.GetAlert(ctx, "a1")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		got.Coordinates.Latitude = 99

		listed, err := s.ListAlerts(ctx, AlertFilter{})
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		listed[0].Coordinates.Latitude = 77

		again, _ := s.GetAlert(ctx, "a1")
		if again.Coordinates.Latitude != 1 {
			t.Errorf("expected stored latitude 1, got %v", again.Coordinates.Latitude)
		}
	})
}

func TestStore_GetAlert_NotFound(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		_, err := s.GetAlert(context.Background(), "missing")
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		err = s.UpdateAlert(context.Background(), &models.Alert{ID: "missing", Status: models.AlertStatusResolved})
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound on update, got %v", err)
		}
	})
}

func TestStore_ListAlerts_OrderAndFilters(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Now().UTC()

		alerts := []*models.Alert{
			testAlert("old", "inst1", models.AlertStatusPending, base.Add(-time.Hour)),
			testAlert("tie1", "inst1", models.AlertStatusActive, base),
			testAlert("tie2", "inst2", models.AlertStatusActive, base),
			testAlert("done", "inst1", models.AlertStatusResolved, base.Add(time.Minute)),
		}
		for _, a := range alerts {
			if err := s.AddAlert(ctx, a); err != nil {
				t.Fatalf("AddAlert failed: %v", err)
			}
		}

		results, err := s.ListAlerts(ctx, AlertFilter{OpenOnly: true})
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		want := []string{"tie2", "tie1", "old"}
		if len(results) != len(want) {
			t.Fatalf("expected %d open alerts, got %d", len(want), len(results))
		}
		for i, id := range want {
			if results[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, results[i].ID)
			}
		}

		results, err = s.ListAlerts(ctx, AlertFilter{InstitutionID: "inst1"})
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(results) != 3 || results[0].ID != "done" {
			t.Errorf("expected 3 inst1 alerts led by 'done', got %d", len(results))
		}

		results, _ = s.ListAlerts(ctx, AlertFilter{Limit: 1})
		if len(results) != 1 {
			t.Errorf("expected limit 1, got %d", len(results))
		}
	})
}

func TestStore_UpdateAlert(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		a := testAlert("a1", "inst1", models.AlertStatusPending, now)
		s.AddAlert(ctx, a)

		a.Status = models.AlertStatusResolved
		a.UpdatedAt = now.Add(time.Minute)
		if err := s.UpdateAlert(ctx, a); err != nil {
			t.Fatalf("UpdateAlert failed: %v", err)
		}

		got, _ := s.GetAlert(ctx, "a1")
		if got.Status != models.AlertStatusResolved {
			t.Errorf("expected resolved, got %s", got.Status)
		}
		if !got.UpdatedAt.Equal(now.Add(time.Minute)) {
			t.Errorf("expected updated_at to change")
		}
	})
}

func testCampaign(id, institutionID, title string, channel models.Channel, createdAt time.Time) *models.CampaignLog {
	return &models.CampaignLog{
		ID:          id,
		Institution: models.Institution{ID: institutionID, Name: "School " + institutionID},
		Channel:     channel,
		Category:    models.AlertCategoryGeneral,
		Title:       title,
		Body:        "Drill at 10am",
		Language:    "en",
		Priority:    models.PriorityMedium,
		Recipients:  models.Recipients{RecipientCounts: models.RecipientCounts{Students: 10}, Total: 10},
		Delivery:    models.Delivery{Sent: 10, Delivered: 9, Pending: 1},
		Cost:        2.5,
		Status:      models.CampaignStatusSent,
		CreatedAt:   createdAt,
	}
}

func TestStore_Campaigns(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		logs := []*models.CampaignLog{
			testCampaign("c1", "inst1", "Fire drill", models.ChannelSMS, now.Add(-time.Minute)),
			testCampaign("c2", "inst2", "Flood warning", models.ChannelBoth, now),
		}
		logs[1].AlertID = "a9"
		for _, l := range logs {
			if err := s.AddCampaign(ctx, l); err != nil {
				t.Fatalf("AddCampaign failed: %v", err)
			}
		}

		got, err := s.GetCampaign(ctx, "c2")
		if err != nil {
			t.Fatalf("GetCampaign failed: %v", err)
		}
		if got.AlertID != "a9" || got.Delivery.Delivered != 9 || got.Cost != 2.5 {
			t.Errorf("unexpected campaign round trip: %+v", got)
		}

		all, _ := s.ListCampaigns(ctx, CampaignFilter{})
		if len(all) != 2 || all[0].ID != "c2" {
			t.Errorf("expected c2 first, got %+v", all)
		}

		sms := models.ChannelSMS
		filtered, _ := s.ListCampaigns(ctx, CampaignFilter{Channel: &sms})
		if len(filtered) != 1 || filtered[0].ID != "c1" {
			t.Errorf("expected only c1 for sms filter, got %d", len(filtered))
		}

		filtered, _ = s.ListCampaigns(ctx, CampaignFilter{Query: "FLOOD"})
		if len(filtered) != 1 || filtered[0].ID != "c2" {
			t.Errorf("expected only c2 for text search, got %d", len(filtered))
		}

		filtered, _ = s.ListCampaigns(ctx, CampaignFilter{Query: "school inst1"})
		if len(filtered) != 1 || filtered[0].ID != "c1" {
			t.Errorf("expected institution name search to match c1, got %d", len(filtered))
		}

		accented := testCampaign("c3", "inst3", "Évacuation", models.ChannelSMS, now.Add(-time.Hour))
		accented.Institution.Name = "ÉCOLE Über"
		if err := s.AddCampaign(ctx, accented); err != nil {
			t.Fatalf("AddCampaign failed: %v", err)
		}
		for _, q := range []string{"école", "ÜBER", "évacuation"} {
			filtered, _ = s.ListCampaigns(ctx, CampaignFilter{Query: q})
			if len(filtered) != 1 || filtered[0].ID != "c3" {
				t.Errorf("expected %q to match only c3, got %d", q, len(filtered))
			}
		}

		if err := s.UpdateCampaignStatus(ctx, "c1", models.CampaignStatusFailed); err != nil {
			t.Fatalf("UpdateCampaignStatus failed: %v", err)
		}
		failed := models.CampaignStatusFailed
		filtered, _ = s.ListCampaigns(ctx, CampaignFilter{Status: &failed})
		if len(filtered) != 1 || filtered[0].ID != "c1" {
			t.Errorf("expected c1 to be failed, got %d", len(filtered))
		}

		if err := s.UpdateCampaignStatus(ctx, "missing", models.CampaignStatusFailed); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNewSQLiteDB_BadPath(t *testing.T) {
	// the directory does not exist, so the first connection fails
	path := filepath.Join(t.TempDir(), "missing", "alerts.db")
	if _, err := NewSQLiteDB(path); err == nil {
		t.Fatal("expected error for unreachable database path")
	}
	// goleak in TestMain fails the package if the pool was left open
}

func TestOpen(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		s, err := Open(config.StoreConfig{Backend: backend, Path: ":memory:"})
		if err != nil {
			t.Fatalf("%s: Open failed: %v", backend, err)
		}
		s.Close()
	}

	if _, err := Open(config.StoreConfig{Backend: "postgres"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
