package usage

import "time"

// AlertState records, per quota, whether the most recent evaluation found it
// at or above its threshold.
type AlertState map[QuotaName]bool

// NewAlertState returns the all-false state written on install.
func NewAlertState() AlertState {
	return AlertState{
		QuotaSession: false,
		QuotaWeekly:  false,
	}
}

// Clone returns an independent copy.
func (a AlertState) Clone() AlertState {
	out := make(AlertState, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// CachedResult is the last known reading together with the last error.
// A failed fetch sets Error but keeps Usage from the previous success.
type CachedResult struct {
	Usage     *Snapshot  `json:"usage,omitempty"`
	LastFetch *time.Time `json:"lastFetch,omitempty"`
	Error     string     `json:"error,omitempty"`
}
