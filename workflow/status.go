package workflow

import (
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
)

// StatusStrategy resolves raw status text for a canonical contract.
type StatusStrategy interface {
	MapStatus(raw string, start, end models.Date) string
}

// NewStatusStrategy returns the strategy named by config.StatusStrategy*.
func NewStatusStrategy(name string, now func() time.Time) StatusStrategy {
	if name == config.StatusStrategyDateDriven {
		if now == nil {
			now = time.Now
		}
		return DateDrivenStatus{Now: now}
	}
	return PassthroughStatus{}
}

// MapStatus is the default resolution: LIVE wins, then the inactive markers,
// otherwise the text is kept as is.
func MapStatus(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "LIVE"):
		return models.StatusLive
	case strings.Contains(s, "INACTIVE-A"), strings.Contains(s, "INACTIVE-B"), strings.Contains(s, "END CONTRACT"):
		return models.StatusInactive
	}
	return strings.TrimSpace(raw)
}

type PassthroughStatus struct{}

func (PassthroughStatus) MapStatus(raw string, start, end models.Date) string {
	return MapStatus(raw)
}

// DateDrivenStatus refines MapStatus with the contract dates: a contract that
// has not started yet is PENDING, and a LIVE contract past its end date is
// OVERDUE. INACTIVE is never overridden.
type DateDrivenStatus struct {
	Now func() time.Time
}

func (d DateDrivenStatus) MapStatus(raw string, start, end models.Date) string {
	status := MapStatus(raw)
	if status == models.StatusInactive {
		return status
	}
	today := models.NewDate(d.Now())
	if start.Known() && models.CompareDates(today, start) < 0 {
		return models.StatusPending
	}
	if status == models.StatusLive && end.Known() && models.CompareDates(end, today) < 0 {
		return models.StatusOverdue
	}
	return status
}
