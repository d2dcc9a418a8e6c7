package engine

import "github.com/rmax-ai/usagewatch/pkg/usage"

// Alert is a single upward threshold crossing.
type Alert struct {
	Quota       usage.QuotaName `json:"quota"`
	Utilization float64         `json:"utilization"`
	Threshold   int             `json:"threshold"`
}

// alertQuotas are the quotas with a configurable threshold.
var alertQuotas = []usage.QuotaName{usage.QuotaSession, usage.QuotaWeekly}

// Evaluate compares snap against the configured thresholds. It is edge
// triggered: a quota alerts only when it is at or above its threshold and
// was not in the prior state. A quota without a reported utilization keeps
// its prior bit. prior is not modified.
func Evaluate(snap usage.Snapshot, settings usage.Settings, prior usage.AlertState) ([]Alert, usage.AlertState) {
	next := prior.Clone()
	var alerts []Alert

	for _, q := range alertQuotas {
		util, ok := snap.Quota(q).Util()
		if !ok {
			continue
		}
		threshold, _ := settings.Threshold(q)

		isAbove := util >= float64(threshold)
		if isAbove && !prior[q] {
			alerts = append(alerts, Alert{Quota: q, Utilization: util, Threshold: threshold})
		}
		next[q] = isAbove
	}

	return alerts, next
}
