package ports

import (
	"context"
	"time"

	"github.com/eightyone/botdock/internal/core/domain"
)

// ReportStore persists weekly attendance data and answers the aggregate
// queries the bot commands need.
type ReportStore interface {
	// SaveWeek replaces the records for the week ending on the given Sunday.
	SaveWeek(ctx context.Context, sunday time.Time, records []domain.AttendanceRecord) error
	// SummaryForWeek returns per-district sums plus the 總計 row.
	SummaryForWeek(ctx context.Context, sunday time.Time) ([]domain.DistrictSummary, error)
	// RecentWeeks returns up to n weeks of summed data for a region
	// (a large region, a single district, or 總計), oldest first.
	RecentWeeks(ctx context.Context, region string, n int) ([]domain.WeekPoint, error)
	// LatestSunday reports the most recent stored week, ok=false when empty.
	LatestSunday(ctx context.Context) (time.Time, bool, error)
}
