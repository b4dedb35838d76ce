package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckQuotaCountsRequests(t *testing.T) {
	quota := Quota{MaxRequestsPerMin: 2}

	now, err := CheckQuota(quota, 1, QuotaNow{}, 1, 0)
	require.NoError(t, err)
	now, err = CheckQuota(quota, 1, now, 1, 0)
	require.NoError(t, err)

	_, err = CheckQuota(quota, 1, now, 1, 0)
	require.ErrorIs(t, err, ErrQuotaRequestsExceeded)

	// A new epoch resets the counters.
	next, err := CheckQuota(quota, 2, now, 1, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, next.ReqCount)
	require.EqualValues(t, 2, next.EpochID)
}

func TestCheckQuotaValueCap(t *testing.T) {
	quota := Quota{MaxValuePerEpoch: 100}

	now, err := CheckQuota(quota, 1, QuotaNow{}, 0, 60)
	require.NoError(t, err)
	_, err = CheckQuota(quota, 1, now, 0, 41)
	require.ErrorIs(t, err, ErrQuotaValueExceeded)
}

func TestCheckQuotaRejectionLeavesCountersUnchanged(t *testing.T) {
	quota := Quota{MaxRequestsPerMin: 1}
	now, err := CheckQuota(quota, 1, QuotaNow{}, 1, 0)
	require.NoError(t, err)

	after, err := CheckQuota(quota, 1, now, 1, 0)
	require.ErrorIs(t, err, ErrQuotaRequestsExceeded)
	require.Equal(t, now, after)
}

func TestCheckQuotaUnlimitedWhenZero(t *testing.T) {
	now := QuotaNow{}
	var err error
	for i := 0; i < 1_000; i++ {
		now, err = CheckQuota(Quota{}, 1, now, 1, 10)
		require.NoError(t, err)
	}
}
