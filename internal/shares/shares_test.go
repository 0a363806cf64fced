package shares

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	tests := []struct {
		name string
		in   []Participant
		want []float64
	}{
		{
			name: "all free",
			in:   []Participant{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
			want: []float64{25, 25, 25, 25},
		},
		{
			name: "one pinned",
			in: []Participant{
				{ID: "a", SharePercentage: 50, ManualOverride: true},
				{ID: "b", SharePercentage: 10},
				{ID: "c"},
				{ID: "d", SharePercentage: 90},
			},
			want: []float64{50, 50.0 / 3, 50.0 / 3, 50.0 / 3},
		},
		{
			name: "single free participant takes the rest",
			in: []Participant{
				{ID: "a", SharePercentage: 30, ManualOverride: true},
				{ID: "b", SharePercentage: 20, ManualOverride: true},
				{ID: "c", SharePercentage: 0},
			},
			want: []float64{30, 20, 50},
		},
		{
			name: "manual shares exactly 100",
			in: []Participant{
				{ID: "a", SharePercentage: 100, ManualOverride: true},
				{ID: "b", SharePercentage: 40},
			},
			want: []float64{100, 0},
		},
		{
			name: "empty",
			in:   nil,
			want: []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.in)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, tt.in[i].ID, got[i].ID)
				assert.InDelta(t, w, got[i].SharePercentage, Epsilon)
			}
		})
	}
}

func TestAllocate_SumIsFull(t *testing.T) {
	for free := 1; free <= 12; free++ {
		ps := []Participant{
			{ID: "pinned-1", SharePercentage: 12.5, ManualOverride: true},
			{ID: "pinned-2", SharePercentage: 7.25, ManualOverride: true},
		}
		for i := 0; i < free; i++ {
			ps = append(ps, Participant{ID: string(rune('a' + i)), SharePercentage: 3})
		}

		got, err := Allocate(ps)
		require.NoError(t, err)
		assert.InDelta(t, FullShare, Total(got), Epsilon, "free=%d", free)
	}
}

func TestAllocate_PreservesOverridesAndSplitsEqually(t *testing.T) {
	in := []Participant{
		{ID: "a", SharePercentage: 33.3, ManualOverride: true},
		{ID: "b", SharePercentage: 1},
		{ID: "c", SharePercentage: 11.1, ManualOverride: true},
		{ID: "d", SharePercentage: 80},
		{ID: "e", SharePercentage: 2},
	}
	got, err := Allocate(in)
	require.NoError(t, err)

	var free []float64
	for i, p := range got {
		if in[i].ManualOverride {
			assert.Equal(t, in[i].SharePercentage, p.SharePercentage)
			assert.True(t, p.ManualOverride)
			continue
		}
		free = append(free, p.SharePercentage)
	}
	for _, s := range free[1:] {
		assert.Equal(t, free[0], s)
	}
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	in := []Participant{{ID: "a", SharePercentage: 70}, {ID: "b", SharePercentage: 30}}
	_, err := Allocate(in)
	require.NoError(t, err)
	assert.Equal(t, 70.0, in[0].SharePercentage)
	assert.Equal(t, 30.0, in[1].SharePercentage)
}

func TestAllocate_Idempotent(t *testing.T) {
	in := []Participant{
		{ID: "a", SharePercentage: 20, ManualOverride: true},
		{ID: "b"},
		{ID: "c"},
	}
	once, err := Allocate(in)
	require.NoError(t, err)
	twice, err := Allocate(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Empty(t, Changed(once, twice))
}

func TestAllocate_AllManualIsNoop(t *testing.T) {
	in := []Participant{
		{ID: "a", SharePercentage: 60, ManualOverride: true},
		{ID: "b", SharePercentage: 15, ManualOverride: true},
	}
	got, err := Allocate(in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestAllocate_ManualOverFull(t *testing.T) {
	in := []Participant{
		{ID: "a", SharePercentage: 80, ManualOverride: true},
		{ID: "b", SharePercentage: 40, ManualOverride: true},
		{ID: "c"},
		{ID: "d"},
	}
	got, err := Allocate(in)

	var ise *InvalidShareError
	require.True(t, errors.As(err, &ise))
	assert.InDelta(t, 120, ise.ManualTotal, Epsilon)
	assert.InDelta(t, -10, ise.AutoShare, Epsilon)

	// the computed result is still returned
	require.Len(t, got, 4)
	assert.InDelta(t, -10, got[2].SharePercentage, Epsilon)
	assert.InDelta(t, -10, got[3].SharePercentage, Epsilon)
}

func TestAllocate_ManualOverFullWithoutFree(t *testing.T) {
	in := []Participant{
		{ID: "a", SharePercentage: 80, ManualOverride: true},
		{ID: "b", SharePercentage: 40, ManualOverride: true},
	}
	got, err := Allocate(in)
	var ise *InvalidShareError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, in, got)
}

func TestChanged(t *testing.T) {
	before := []Participant{{ID: "a", SharePercentage: 50}, {ID: "b", SharePercentage: 50}}
	after := []Participant{{ID: "a", SharePercentage: 50}, {ID: "b", SharePercentage: 25}, {ID: "c", SharePercentage: 25}}

	got := Changed(before, after)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestPayout(t *testing.T) {
	in := []Participant{
		{ID: "a", SharePercentage: 50, ManualOverride: true},
		{ID: "b"}, {ID: "c"}, {ID: "d"},
	}
	got, err := Allocate(in)
	require.NoError(t, err)

	assert.Equal(t, 500000.0, Payout(1_000_000, got[0].SharePercentage))
	for _, p := range got[1:] {
		assert.InDelta(t, 16.6666666667, p.SharePercentage, 1e-9)
		assert.Equal(t, 166666.67, Payout(1_000_000, p.SharePercentage))
	}
	assert.Equal(t, 0.0, Payout(0, 25))
}
