package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

func TestState_SettingsDefaultsWhenUnset(t *testing.T) {
	st := NewState(NewMemoryStore(), NewMemoryStore())
	got, err := st.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if got != usage.DefaultSettings() {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestState_SettingsMergeOlderRecord(t *testing.T) {
	synced := NewMemoryStore()
	ctx := context.Background()
	if err := synced.Set(ctx, KeySettings, `{"thresholdEnabled":true,"sessionThreshold":70}`); err != nil {
		t.Fatal(err)
	}
	st := NewState(NewMemoryStore(), synced)

	got, err := st.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if !got.ThresholdEnabled || got.SessionThreshold != 70 {
		t.Errorf("stored fields lost: %+v", got)
	}
	if got.BadgeDisplay != usage.BadgeSession || got.PeriodicIntervalMinutes != 60 {
		t.Errorf("missing fields should take defaults: %+v", got)
	}
}

func TestState_InitSettingsKeepsExisting(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemoryStore(), NewMemoryStore())

	custom := usage.DefaultSettings()
	custom.WeeklyThreshold = 95
	if err := st.SaveSettings(ctx, custom); err != nil {
		t.Fatal(err)
	}

	got, err := st.InitSettings(ctx)
	if err != nil {
		t.Fatalf("InitSettings failed: %v", err)
	}
	if got.WeeklyThreshold != 95 {
		t.Errorf("InitSettings overwrote existing record: %+v", got)
	}

	fresh := NewState(NewMemoryStore(), NewMemoryStore())
	got, err = fresh.InitSettings(ctx)
	if err != nil {
		t.Fatalf("InitSettings failed: %v", err)
	}
	if got != usage.DefaultSettings() {
		t.Errorf("expected defaults on fresh install, got %+v", got)
	}
	loaded, _ := fresh.LoadSettings(ctx)
	if loaded != usage.DefaultSettings() {
		t.Errorf("defaults were not persisted: %+v", loaded)
	}
}

func TestState_OrgID(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemoryStore(), NewMemoryStore())

	id, err := st.OrgID(ctx)
	if err != nil || id != "" {
		t.Fatalf("expected empty org id, got %q (%v)", id, err)
	}
	if err := st.SetOrgID(ctx, "org-abc"); err != nil {
		t.Fatal(err)
	}
	id, _ = st.OrgID(ctx)
	if id != "org-abc" {
		t.Errorf("expected org-abc, got %q", id)
	}
}

func TestState_SnapshotThenError(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()
	st := NewState(s, s)
	ctx := context.Background()

	res, err := st.CachedResult(ctx)
	if err != nil {
		t.Fatalf("CachedResult failed: %v", err)
	}
	if res.Usage != nil || res.LastFetch != nil || res.Error != "" {
		t.Errorf("expected empty result, got %+v", res)
	}

	fetched := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	snap := usage.Snapshot{
		FiveHour: &usage.Quota{Utilization: usage.Float(85), ResetsAt: usage.Time(fetched.Add(time.Hour))},
		SevenDay: &usage.Quota{Utilization: usage.Float(60)},
	}
	if err := st.SaveError(ctx, "stale"); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveSnapshot(ctx, snap, fetched); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	res, _ = st.CachedResult(ctx)
	if res.Error != "" {
		t.Errorf("expected error cleared, got %q", res.Error)
	}
	if _, err := s.Get(ctx, KeyError); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected error key removed, got %v", err)
	}
	if res.LastFetch == nil || !res.LastFetch.Equal(fetched) {
		t.Errorf("expected lastFetch %v, got %v", fetched, res.LastFetch)
	}
	if u, _ := res.Usage.Quota(usage.QuotaSession).Util(); u != 85 {
		t.Errorf("expected session 85, got %v", u)
	}

	if err := st.SaveError(ctx, "Usage fetch failed: 403"); err != nil {
		t.Fatal(err)
	}
	res, _ = st.CachedResult(ctx)
	if res.Error != "Usage fetch failed: 403" {
		t.Errorf("unexpected error %q", res.Error)
	}
	if res.Usage == nil {
		t.Fatal("failed fetch must not clear cached usage")
	}
	if u, _ := res.Usage.Quota(usage.QuotaWeekly).Util(); u != 60 {
		t.Errorf("expected weekly 60, got %v", u)
	}
}

func TestState_AlertState(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemoryStore(), NewMemoryStore())

	got, err := st.AlertState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got[usage.QuotaSession] || got[usage.QuotaWeekly] {
		t.Errorf("expected all-false state, got %v", got)
	}

	if err := st.SetAlertState(ctx, usage.AlertState{usage.QuotaSession: true}); err != nil {
		t.Fatal(err)
	}
	got, _ = st.AlertState(ctx)
	if !got[usage.QuotaSession] {
		t.Error("expected session bit set")
	}
	if v, ok := got[usage.QuotaWeekly]; !ok || v {
		t.Errorf("expected weekly to read false, got %v (present=%v)", v, ok)
	}

	if err := st.ResetAlertState(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ = st.AlertState(ctx)
	if got[usage.QuotaSession] {
		t.Error("expected session bit cleared after reset")
	}
}

func TestState_InstalledAt(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemoryStore(), NewMemoryStore())

	at, err := st.InstalledAt(ctx)
	if err != nil || at != nil {
		t.Fatalf("expected nil installedAt, got %v (%v)", at, err)
	}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := st.MarkInstalled(ctx, now); err != nil {
		t.Fatal(err)
	}
	at, _ = st.InstalledAt(ctx)
	if at == nil || !at.Equal(now) {
		t.Errorf("expected %v, got %v", now, at)
	}
}

func TestState_CloseSharedScope(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()
	if err := NewState(s, s).Close(); err != nil {
		t.Errorf("closing a shared scope should close once: %v", err)
	}
}
