package aging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-fin/meridian/internal/shared"
)

func TestComputeBucketsByAge(t *testing.T) {
	now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	items := []OutstandingItem{
		{Amount: 1000, DueDate: now.AddDate(0, 0, 10)},  // not yet due
		{Amount: 2000, DueDate: now.AddDate(0, 0, -15)}, // 15 days
		{Amount: 3000, DueDate: now.AddDate(0, 0, -45)}, // 45 days
		{Amount: 4000, DueDate: now.AddDate(0, 0, -75)}, // 75 days
		{Amount: 5000, DueDate: now.AddDate(0, 0, -95)}, // 95 days
	}

	b := Compute(items, now)
	require.InDelta(t, 3000, b.Current, 1e-9)
	require.InDelta(t, 3000, b.Days31to60, 1e-9)
	require.InDelta(t, 4000, b.Days61to90, 1e-9)
	require.InDelta(t, 5000, b.Over90, 1e-9)
	require.InDelta(t, 15000, b.Total, 1e-9)
	require.InDelta(t, 12000, b.TotalOverdue, 1e-9)
}

func TestComputeBucketBoundaries(t *testing.T) {
	now := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)

	boundary := func(daysAgo int) Buckets {
		return Compute([]OutstandingItem{{Amount: 100, DueDate: now.AddDate(0, 0, -daysAgo)}}, now)
	}

	require.InDelta(t, 100, boundary(30).Current, 1e-9)
	require.InDelta(t, 100, boundary(31).Days31to60, 1e-9)
	require.InDelta(t, 100, boundary(60).Days31to60, 1e-9)
	require.InDelta(t, 100, boundary(61).Days61to90, 1e-9)
	require.InDelta(t, 100, boundary(90).Days61to90, 1e-9)
	require.InDelta(t, 100, boundary(91).Over90, 1e-9)
}

func TestComputeIsIdempotent(t *testing.T) {
	now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	items := []OutstandingItem{
		{Amount: 123.45, DueDate: now.AddDate(0, 0, -40)},
		{Amount: 678.90, DueDate: now.AddDate(0, 0, -100)},
	}

	first := Compute(items, now)
	second := Compute(items, now)
	require.Equal(t, first, second)

	sum := first.Current + first.Days31to60 + first.Days61to90 + first.Over90
	require.InDelta(t, first.Total, sum, 1e-9)
}

func TestComputeEmpty(t *testing.T) {
	b := Compute(nil, time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC))
	require.Zero(t, b.Total)
	require.Zero(t, b.TotalOverdue)
}

func TestAgeDaysFlooredAtZero(t *testing.T) {
	now := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 0, AgeDays(now.AddDate(0, 0, 30), now))
	require.Equal(t, 0, AgeDays(now, now))
	require.Equal(t, 7, AgeDays(now.AddDate(0, 0, -7), now))
}

func TestServiceReportsPerSubject(t *testing.T) {
	now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	payables := func(ctx context.Context, vendorID int64) ([]OutstandingItem, error) {
		require.Equal(t, int64(7), vendorID)
		return []OutstandingItem{{Amount: 500, DueDate: now.AddDate(0, 0, -95)}}, nil
	}
	receivables := func(ctx context.Context, clientID int64) ([]OutstandingItem, error) {
		return nil, nil
	}

	svc := NewService(payables, receivables, shared.FixedClock{At: now})

	report, err := svc.VendorAging(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), report.SubjectID)
	require.InDelta(t, 500, report.Buckets.Over90, 1e-9)
	require.InDelta(t, 500, report.Buckets.TotalOverdue, 1e-9)

	empty, err := svc.ClientAging(context.Background(), 3)
	require.NoError(t, err)
	require.Zero(t, empty.Buckets.Total)
}
