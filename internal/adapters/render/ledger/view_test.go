package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/gptmeter/internal/domain"
)

var renderNow = time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

func TestRenderLedger(t *testing.T) {
	output, err := Render(domain.Snapshot{
		Aggregate: domain.AggregateRecord{TotalRequests: 3, TotalUnits: 1510},
		Accounts: map[domain.Identity]domain.AccountRecord{
			42: {
				ID:              42,
				DisplayName:     "Ada",
				Handle:          "ada",
				RequestCount:    2,
				UnitsConsumed:   1010,
				Balance:         28990,
				LastActivity:    renderNow.Add(-3 * time.Hour),
				SystemDirective: "Answer like a pirate.",
			},
			1001: {
				ID:            1001,
				DisplayName:   "Admin",
				RequestCount:  1,
				UnitsConsumed: 500,
				Balance:       777777,
			},
		},
	}, RenderOptions{Now: renderNow, Privileged: 1001, CentsPerUnit: 0.0002})

	require.NoError(t, err)
	assert.Contains(t, output, "accounts: 2")
	assert.Contains(t, output, "total: 3 requests, 1.5k units, ¢0.302")
	assert.Contains(t, output, "Ada @ada (42)")
	assert.Contains(t, output, "28990 units")
	assert.Contains(t, output, "usage: 2 requests, 1.0k units (¢0.202)")
	assert.Contains(t, output, "14.02.2026 08:00:00 (3 hours ago)")
	assert.Contains(t, output, `directive: "Answer like a pirate."`)
	assert.Contains(t, output, "Admin (1001)")
	assert.Contains(t, output, "[admin]")
	assert.Contains(t, output, "unmetered")
	assert.Contains(t, output, "last request: never")

	assert.Less(t, strings.Index(output, "(42)"), strings.Index(output, "(1001)"))
}

func TestRenderEmptyLedger(t *testing.T) {
	output, err := Render(domain.Snapshot{}, RenderOptions{Now: renderNow})

	require.NoError(t, err)
	assert.Contains(t, output, "accounts: 0")
	assert.Contains(t, output, "No accounts registered.")
}

func TestRenderExhaustedAccount(t *testing.T) {
	output, err := Render(domain.Snapshot{
		Accounts: map[domain.Identity]domain.AccountRecord{
			42: {ID: 42, DisplayName: "Ada", UnitsConsumed: 30010, Balance: -10},
		},
	}, RenderOptions{Now: renderNow, Privileged: 1001})

	require.NoError(t, err)
	assert.Contains(t, output, "-10 units [exhausted]")
	assert.NotContains(t, output, "=")
}

func TestRemainingPercent(t *testing.T) {
	assert.InDelta(t, 75.0, remainingPercent(domain.AccountRecord{Balance: 300, UnitsConsumed: 100}), 0.001)
	assert.Zero(t, remainingPercent(domain.AccountRecord{Balance: -5, UnitsConsumed: 100}))
	assert.Zero(t, remainingPercent(domain.AccountRecord{}))
}

func TestFormatLastActivity(t *testing.T) {
	assert.Equal(t, "never", formatLastActivity(time.Time{}, renderNow))
	assert.Equal(t, "14.02.2026 10:59:30 (just now)", formatLastActivity(renderNow.Add(-30*time.Second), renderNow))
	assert.Equal(t, "14.02.2026 10:59:00 (1 minute ago)", formatLastActivity(renderNow.Add(-time.Minute), renderNow))
	assert.Equal(t, "12.02.2026 11:00:00 (2 days ago)", formatLastActivity(renderNow.Add(-48*time.Hour), renderNow))
	assert.Equal(t, "14.02.2026 11:00:00", formatLastActivity(renderNow, time.Time{}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
