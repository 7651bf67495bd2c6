package guard

import (
	"strings"
	"time"

	"github.com/smallbiznis/ordersync/internal/job/domain"
)

// EnsureNoRecentSync refuses a sync while the latest completed one is younger than window.
func EnsureNoRecentSync(latest *domain.SyncJob, window time.Duration, now time.Time, force bool) error {
	if force || latest == nil || latest.CompletedAt == nil || window <= 0 {
		return nil
	}
	if now.Sub(*latest.CompletedAt) < window {
		return domain.ErrRecentSync
	}
	return nil
}

func EnsureTrigger(trigger domain.Trigger) error {
	switch trigger {
	case domain.TriggerManual, domain.TriggerUpload, domain.TriggerSchedule, domain.TriggerAPI:
		return nil
	}
	return domain.ErrInvalidTrigger
}

func ParseKind(value string) (domain.Kind, error) {
	kind := domain.Kind(strings.ToLower(strings.TrimSpace(value)))
	switch kind {
	case "", domain.KindWarehouseSync, domain.KindUpload:
		return kind, nil
	}
	return "", domain.ErrInvalidKind
}

func ParseStatus(value string) (domain.Status, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case "", domain.StatusPending, domain.StatusRunning, domain.StatusCompleted, domain.StatusFailed:
		return status, nil
	}
	return "", domain.ErrInvalidStatus
}

// EnsureCSV accepts only .csv upload names.
func EnsureCSV(fileName string) error {
	name := strings.TrimSpace(fileName)
	if name == "" || !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return domain.ErrInvalidFile
	}
	return nil
}
