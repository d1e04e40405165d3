package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeBucket(t *testing.T) {
	tests := []struct {
		name     string
		ts       int64
		interval int64
		want     int64
	}{
		{"exact boundary", 10000, 5000, 10000},
		{"inside bucket", 1153721339, 5000, 1153720000},
		{"zero", 0, 5000, 0},
		{"negative floors down", -1, 5000, -5000},
		{"negative boundary", -5000, 5000, -5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeBucket(tt.ts, tt.interval))
		})
	}
}

func TestResolve(t *testing.T) {
	path, err := Resolve("/dev/shm/performanceanalyzer", 1153721339, 5000, ShardStatePath)
	require.NoError(t, err)
	assert.Equal(t, "/dev/shm/performanceanalyzer/1153720000/shard_state", path)

	// 根目录末尾的斜杠不重复
	path, err = Resolve("/tmp/pa/", 1153721339, 5000, ShardStatePath)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pa/1153720000/shard_state", path)
}

func TestResolve_IsPure(t *testing.T) {
	first, err := Resolve("/base", 987654321, 5000, "sub")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Resolve("/base", 987654321, 5000, "sub")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolve_RejectsExtraArgs(t *testing.T) {
	for _, extra := range [][]string{{"shardStatePath"}, {"a", "b"}, {""}} {
		_, err := Resolve("/base", 1153721339, 5000, ShardStatePath, extra...)
		require.Error(t, err)

		var invErr *InvocationError
		require.True(t, errors.As(err, &invErr))
		assert.Equal(t, len(extra), invErr.Passed)
		assert.Equal(t, 0, invErr.Expected)
	}
}

func TestResolve_RejectsBadInterval(t *testing.T) {
	for _, interval := range []int64{0, -5000} {
		_, err := Resolve("/base", 1153721339, interval, ShardStatePath)
		var invErr *InvocationError
		assert.True(t, errors.As(err, &invErr))
	}
}

func TestResolve_ExtremeTimestamps(t *testing.T) {
	_, err := Resolve("/b", math.MinInt64+1, 5000, "x")
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, int64(math.MinInt64), TimeBucket(math.MinInt64+1, 5000))

	// 能表示的最小边界仍然正常
	lowest := int64(math.MinInt64/5000) * 5000
	path, err := Resolve("/b", lowest, 5000, "x")
	require.NoError(t, err)
	assert.Equal(t, "/b/-9223372036854775000/x", path)

	path, err = Resolve("/b", math.MaxInt64, 5000, "x")
	require.NoError(t, err)
	assert.Equal(t, "/b/9223372036854775000/x", path)

	// 间隔为 1 时不会溢出
	path, err = Resolve("/b", math.MinInt64, 1, "x")
	require.NoError(t, err)
	assert.Equal(t, "/b/-9223372036854775808/x", path)
}

func TestResolver(t *testing.T) {
	r := NewResolver("", 0)
	assert.Equal(t, DefaultMetricsLocation, r.Base)
	assert.Equal(t, DefaultSamplingInterval, r.Interval)

	path, err := r.Path(1153721339, ShardStatePath)
	require.NoError(t, err)
	assert.Equal(t, DefaultMetricsLocation+"/1153720000/"+ShardStatePath, path)
	assert.Equal(t, int64(1153720000), r.Bucket(1153721339))

	_, err = r.Path(1153721339, ShardStatePath, "extra")
	assert.Error(t, err)
}
