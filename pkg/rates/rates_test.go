package rates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time {
	return &t
}

func at(hour, min int) time.Time {
	return time.Date(2025, 1, 1, hour, min, 0, 0, time.UTC)
}

func TestFindForTime(t *testing.T) {
	tests := []struct {
		name   string
		time   time.Time
		rates  []Rate
		expect *float64
	}{
		{
			name:   "Match within range",
			time:   at(12, 15),
			rates:  []Rate{{ValueIncVat: 10.5, ValidFrom: ptrTime(at(12, 0)), ValidTo: ptrTime(at(12, 30))}},
			expect: floatPtr(10.5),
		},
		{
			name:  "No match, before all ranges",
			time:  at(11, 45),
			rates: []Rate{{ValueIncVat: 10.5, ValidFrom: ptrTime(at(12, 0)), ValidTo: ptrTime(at(12, 30))}},
		},
		{
			name:  "No match, after all ranges",
			time:  at(12, 45),
			rates: []Rate{{ValueIncVat: 10.5, ValidFrom: ptrTime(at(12, 0)), ValidTo: ptrTime(at(12, 30))}},
		},
		{
			name:  "End is exclusive",
			time:  at(12, 30),
			rates: []Rate{{ValueIncVat: 10.5, ValidFrom: ptrTime(at(12, 0)), ValidTo: ptrTime(at(12, 30))}},
		},
		{
			name: "Multiple ranges, match in the middle",
			time: at(12, 15),
			rates: []Rate{
				{ValueIncVat: 5.0, ValidFrom: ptrTime(at(12, 0)), ValidTo: ptrTime(at(12, 10))},
				{ValueIncVat: 10.5, ValidFrom: ptrTime(at(12, 10)), ValidTo: ptrTime(at(12, 20))},
				{ValueIncVat: 7.5, ValidFrom: ptrTime(at(12, 20)), ValidTo: ptrTime(at(12, 30))},
			},
			expect: floatPtr(10.5),
		},
		{
			name:  "Empty rates list",
			time:  at(12, 15),
			rates: []Rate{},
		},
		{
			name:   "Open-ended rate",
			time:   at(12, 15),
			rates:  []Rate{{ValueIncVat: 10.5, ValidFrom: ptrTime(at(12, 0))}},
			expect: floatPtr(10.5),
		},
		{
			name:   "Open-starting rate",
			time:   at(12, 15),
			rates:  []Rate{{ValueIncVat: 10.5, ValidTo: ptrTime(at(12, 30))}},
			expect: floatPtr(10.5),
		},
		{
			name:   "Fully open rate",
			time:   at(12, 15),
			rates:  []Rate{{ValueIncVat: 10.5}},
			expect: floatPtr(10.5),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := FindForTime(test.time, test.rates)
			if test.expect == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, *test.expect, result.ValueIncVat)
		})
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestCoversRange(t *testing.T) {
	from := at(0, 0)
	to := at(6, 0)

	tests := []struct {
		name   string
		rates  []Rate
		expect bool
	}{
		{
			name:   "empty",
			rates:  nil,
			expect: false,
		},
		{
			name:   "single record spanning the range",
			rates:  []Rate{{ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(6, 0))}},
			expect: true,
		},
		{
			name:   "single record larger than the range",
			rates:  []Rate{{ValidFrom: ptrTime(at(-1, 0)), ValidTo: ptrTime(at(7, 0))}},
			expect: true,
		},
		{
			name: "consecutive touching records",
			rates: []Rate{
				{ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(3, 0))},
				{ValidFrom: ptrTime(at(3, 0)), ValidTo: ptrTime(at(6, 0))},
			},
			expect: true,
		},
		{
			name: "consecutive overlapping records out of order",
			rates: []Rate{
				{ValidFrom: ptrTime(at(2, 0)), ValidTo: ptrTime(at(6, 0))},
				{ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(3, 0))},
			},
			expect: true,
		},
		{
			name: "strict gap",
			rates: []Rate{
				{ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(3, 0))},
				{ValidFrom: ptrTime(at(3, 30)), ValidTo: ptrTime(at(6, 0))},
			},
			expect: false,
		},
		{
			name: "one nanosecond gap",
			rates: []Rate{
				{ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(3, 0))},
				{ValidFrom: ptrTime(at(3, 0).Add(time.Nanosecond)), ValidTo: ptrTime(at(6, 0))},
			},
			expect: false,
		},
		{
			name:   "starts after requested start",
			rates:  []Rate{{ValidFrom: ptrTime(at(0, 30)), ValidTo: ptrTime(at(6, 0))}},
			expect: false,
		},
		{
			name:   "ends before requested end",
			rates:  []Rate{{ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(5, 30))}},
			expect: false,
		},
		{
			name: "open-ended tail",
			rates: []Rate{
				{ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(2, 0))},
				{ValidFrom: ptrTime(at(2, 0))},
			},
			expect: true,
		},
		{
			name:   "open start and end",
			rates:  []Rate{{}},
			expect: true,
		},
		{
			name: "open start then continuation",
			rates: []Rate{
				{ValidFrom: ptrTime(at(4, 0)), ValidTo: ptrTime(at(8, 0))},
				{ValidTo: ptrTime(at(4, 0))},
			},
			expect: true,
		},
		{
			name: "shorter record inside a longer one keeps the watermark",
			rates: []Rate{
				{ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(5, 0))},
				{ValidFrom: ptrTime(at(1, 0)), ValidTo: ptrTime(at(2, 0))},
				{ValidFrom: ptrTime(at(5, 0)), ValidTo: ptrTime(at(6, 0))},
			},
			expect: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expect, CoversRange(test.rates, from, to))
		})
	}
}

func TestCoversRangeDoesNotReorderInput(t *testing.T) {
	input := []Rate{
		{ValueIncVat: 2, ValidFrom: ptrTime(at(3, 0)), ValidTo: ptrTime(at(6, 0))},
		{ValueIncVat: 1, ValidFrom: ptrTime(at(0, 0)), ValidTo: ptrTime(at(3, 0))},
	}
	require.True(t, CoversRange(input, at(0, 0), at(6, 0)))
	assert.Equal(t, 2.0, input[0].ValueIncVat)
}

func TestSelect(t *testing.T) {
	input := []Rate{
		{Kind: KindStandardUnitRate, PaymentMethod: PaymentDirectDebit, ValueIncVat: 1},
		{Kind: KindStandardUnitRate, PaymentMethod: PaymentNonDirectDebit, ValueIncVat: 2},
		{Kind: KindStandingCharge, PaymentMethod: PaymentDirectDebit, ValueIncVat: 3},
		{Kind: KindStandardUnitRate, ValueIncVat: 4},
	}

	dd := Select(input, KindStandardUnitRate, PaymentDirectDebit)
	require.Len(t, dd, 2)
	assert.Equal(t, 1.0, dd[0].ValueIncVat)
	assert.Equal(t, 4.0, dd[1].ValueIncVat)

	all := Select(input, KindStandardUnitRate, "")
	assert.Len(t, all, 3)

	assert.Empty(t, Select(input, KindNightUnitRate, ""))
}
