package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Identity
		wantErr string
	}{
		{name: "plain", raw: "42", want: 42},
		{name: "padded", raw: " 123456789 ", want: 123456789},
		{name: "negative group id", raw: "-1001234", want: -1001234},
		{name: "empty", raw: "", wantErr: "identity is empty"},
		{name: "aggregate key", raw: "global", wantErr: "not numeric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentity(tt.raw)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityStringRoundTrip(t *testing.T) {
	id := Identity(987654321)

	parsed, err := ParseIdentity(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestNewSeedSnapshotHasSinglePrivilegedAccount(t *testing.T) {
	snapshot := NewSeedSnapshot(7, DefaultAdminBalance)

	require.Len(t, snapshot.Accounts, 1)
	admin := snapshot.Accounts[7]
	assert.Equal(t, Identity(7), admin.ID)
	assert.Equal(t, int64(777_777), admin.Balance)
	assert.Zero(t, admin.RequestCount)
	assert.Zero(t, admin.UnitsConsumed)
	assert.Equal(t, AggregateRecord{}, snapshot.Aggregate)
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	original := NewSeedSnapshot(1, 100)
	clone := original.Clone()

	account := clone.Accounts[1]
	account.Balance = 0
	clone.Accounts[1] = account
	clone.Accounts[2] = AccountRecord{ID: 2}
	clone.Aggregate.TotalUnits = 10

	assert.Equal(t, int64(100), original.Accounts[1].Balance)
	assert.Len(t, original.Accounts, 1)
	assert.Zero(t, original.Aggregate.TotalUnits)
}

func TestSnapshotSortedAccounts(t *testing.T) {
	snapshot := Snapshot{Accounts: map[Identity]AccountRecord{
		30: {ID: 30},
		1:  {ID: 1},
		12: {ID: 12},
	}}

	sorted := snapshot.SortedAccounts()

	require.Len(t, sorted, 3)
	assert.Equal(t, []Identity{1, 12, 30}, []Identity{sorted[0].ID, sorted[1].ID, sorted[2].ID})
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "¢0.002", FormatCents(10*0.0002))
	assert.Equal(t, "¢0.000", FormatCents(0))
}

func TestCompactUnitsBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		want  string
	}{
		{name: "below thousand", value: 999, want: "999"},
		{name: "thousand", value: 1_000, want: "1.0k"},
		{name: "below million", value: 999_999, want: "1000.0k"},
		{name: "million", value: 1_000_000, want: "1.0M"},
		{name: "overdrawn", value: -250, want: "-250"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompactUnits(tt.value))
		})
	}
}
