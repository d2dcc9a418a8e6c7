package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// State is the typed view over the two storage scopes.
// The local scope holds per-device runtime data; the synced scope holds
// the user's settings record.
type State struct {
	local  KV
	synced KV
}

func NewState(local, synced KV) *State {
	return &State{local: local, synced: synced}
}

// Close closes both scopes. The same KV may back both.
func (s *State) Close() error {
	err := s.local.Close()
	if s.synced != s.local {
		err = errors.Join(err, s.synced.Close())
	}
	return err
}

// LoadSettings returns the stored settings merged over the defaults.
// A missing record yields the defaults.
func (s *State) LoadSettings(ctx context.Context) (usage.Settings, error) {
	raw, err := s.synced.Get(ctx, KeySettings)
	if errors.Is(err, ErrNotFound) {
		return usage.DefaultSettings(), nil
	}
	if err != nil {
		return usage.DefaultSettings(), err
	}
	return usage.MergeSettings([]byte(raw))
}

// SaveSettings replaces the whole settings record.
func (s *State) SaveSettings(ctx context.Context, settings usage.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return s.synced.Set(ctx, KeySettings, string(data))
}

// InitSettings writes the defaults only when no record exists yet, so a
// reinstall on a device that already synced settings keeps them.
func (s *State) InitSettings(ctx context.Context) (usage.Settings, error) {
	_, err := s.synced.Get(ctx, KeySettings)
	if err == nil {
		return s.LoadSettings(ctx)
	}
	if !errors.Is(err, ErrNotFound) {
		return usage.DefaultSettings(), err
	}
	defaults := usage.DefaultSettings()
	return defaults, s.SaveSettings(ctx, defaults)
}

// OrgID returns the cached organization id, or "" when none is cached.
func (s *State) OrgID(ctx context.Context) (string, error) {
	id, err := s.local.Get(ctx, KeyOrgID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return id, err
}

func (s *State) SetOrgID(ctx context.Context, id string) error {
	return s.local.Set(ctx, KeyOrgID, id)
}

// CachedResult returns the last snapshot, fetch time and error message.
func (s *State) CachedResult(ctx context.Context) (usage.CachedResult, error) {
	var res usage.CachedResult

	raw, err := s.local.Get(ctx, KeyUsage)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return res, err
	default:
		var snap usage.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			return res, fmt.Errorf("failed to unmarshal cached usage: %w", err)
		}
		res.Usage = &snap
	}

	raw, err = s.local.Get(ctx, KeyLastFetch)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return res, err
	default:
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return res, fmt.Errorf("failed to parse lastFetch: %w", err)
		}
		res.LastFetch = &ts
	}

	raw, err = s.local.Get(ctx, KeyError)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return res, err
	}
	res.Error = raw

	return res, nil
}

// SaveSnapshot records a successful fetch and removes any previous error.
func (s *State) SaveSnapshot(ctx context.Context, snap usage.Snapshot, fetchedAt time.Time) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal usage: %w", err)
	}
	if err := s.local.SetMany(ctx, map[string]string{
		KeyUsage:     string(data),
		KeyLastFetch: fetchedAt.UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return err
	}
	if err := s.local.Delete(ctx, KeyError); err != nil {
		return fmt.Errorf("failed to clear error: %w", err)
	}
	return nil
}

// SaveError records a failed fetch. The previous snapshot is left in place.
func (s *State) SaveError(ctx context.Context, msg string) error {
	return s.local.Set(ctx, KeyError, msg)
}

// AlertState returns the per-quota debounce bits. Quotas that were never
// written read as false.
func (s *State) AlertState(ctx context.Context) (usage.AlertState, error) {
	state := usage.NewAlertState()
	raw, err := s.local.Get(ctx, KeyLastNotified)
	if errors.Is(err, ErrNotFound) {
		return state, nil
	}
	if err != nil {
		return state, err
	}
	var stored map[usage.QuotaName]bool
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return usage.NewAlertState(), fmt.Errorf("failed to unmarshal alert state: %w", err)
	}
	for k, v := range stored {
		state[k] = v
	}
	return state, nil
}

func (s *State) SetAlertState(ctx context.Context, state usage.AlertState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal alert state: %w", err)
	}
	return s.local.Set(ctx, KeyLastNotified, string(data))
}

// ResetAlertState writes the all-false state.
func (s *State) ResetAlertState(ctx context.Context) error {
	return s.SetAlertState(ctx, usage.NewAlertState())
}

// InstalledAt returns when the install event was handled, or nil if never.
func (s *State) InstalledAt(ctx context.Context) (*time.Time, error) {
	raw, err := s.local.Get(ctx, KeyInstalledAt)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse installedAt: %w", err)
	}
	return &ts, nil
}

func (s *State) MarkInstalled(ctx context.Context, at time.Time) error {
	return s.local.Set(ctx, KeyInstalledAt, at.UTC().Format(time.RFC3339Nano))
}
