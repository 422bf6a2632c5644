package sequestration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
)

func stat(v float64) band.Statistic {
	return band.Of("x", band.ReducerMean, v, 1)
}

func windows(t *testing.T) window.Pair {
	t.Helper()
	p, err := window.Derive(time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC), window.DefaultPeriod)
	require.NoError(t, err)
	return p
}

func TestCalculateFarmScenario(t *testing.T) {
	w := windows(t)
	baseline := Sample{RegionID: "farm", Window: w.Baseline, AGBCarbon: stat(40.25), SOCCarbon: stat(54.5)}
	current := Sample{RegionID: "farm", Window: w.Current, AGBCarbon: stat(37.74), SOCCarbon: stat(54.5)}

	res, err := Calculate(baseline, current, 400)
	require.NoError(t, err)

	net, _ := res.NetCarbon.Float()
	perHa, _ := res.NetCO2e.Float()
	total, _ := res.TotalCO2e.Float()
	credit, _ := res.CreditEstimate.Float()

	assert.InDelta(t, -2.51, net, 1e-9)
	assert.InDelta(t, -2.51*44/12, perHa, 1e-9)
	assert.InDelta(t, -2.51*units.DisplayCO2PerCarbon, perHa, 0.01)
	assert.InDelta(t, -9.20, perHa, 0.01)
	assert.InDelta(t, -3681, total, 1)
	assert.Equal(t, perHa, credit)
}

func TestCalculateUsesExactRatio(t *testing.T) {
	for _, tc := range []struct{ baseline, current float64 }{
		{10, 10}, {0, 1}, {123.456, 98.7}, {-5, 5},
	} {
		res, err := Calculate(
			Sample{RegionID: "r", AGBCarbon: stat(tc.baseline), SOCCarbon: stat(0)},
			Sample{RegionID: "r", AGBCarbon: stat(tc.current), SOCCarbon: stat(0)},
			1,
		)
		require.NoError(t, err)
		v, _ := res.NetCO2e.Float()
		assert.Equal(t, (tc.current-tc.baseline)*(44.0/12.0), v)
	}
}

func TestCalculateMissingSampleIsNoData(t *testing.T) {
	full := Sample{RegionID: "farm", AGBCarbon: stat(40), SOCCarbon: stat(50)}
	partial := Sample{RegionID: "farm", AGBCarbon: band.Missing("agb_carbon", "no scenes"), SOCCarbon: stat(50)}

	for _, pair := range [][2]Sample{{full, partial}, {partial, full}, {partial, partial}} {
		res, err := Calculate(pair[0], pair[1], 400)
		require.NoError(t, err)
		for _, s := range []band.Statistic{res.NetCarbon, res.NetCO2e, res.TotalCO2e, res.CreditEstimate} {
			assert.Equal(t, band.StatusNoData, s.Status)
			assert.Nil(t, s.Value)
			assert.Equal(t, "no scenes", s.Reason)
		}
	}
}

func TestCalculateInvalidOutranksNoData(t *testing.T) {
	bad := Sample{RegionID: "farm", AGBCarbon: band.Invalid("agb_carbon", "out of range"), SOCCarbon: stat(1)}
	missing := Sample{RegionID: "farm", AGBCarbon: stat(1), SOCCarbon: band.Missing("soc", "masked")}

	res, err := Calculate(missing, bad, 10)
	require.NoError(t, err)
	assert.Equal(t, band.StatusInvalid, res.TotalCO2e.Status)
}

func TestCalculateRejectsMismatchedInputs(t *testing.T) {
	_, err := Calculate(Sample{RegionID: "a"}, Sample{RegionID: "b"}, 10)
	assert.ErrorIs(t, err, ErrRegionMismatch)

	w := windows(t)
	_, err = Calculate(Sample{RegionID: "a", Window: w.Current}, Sample{RegionID: "a", Window: w.Baseline}, 10)
	assert.ErrorIs(t, err, ErrWindowOrder)

	_, err = Calculate(Sample{RegionID: "a"}, Sample{RegionID: "a"}, 0)
	assert.ErrorIs(t, err, ErrNonPositiveArea)
}

func TestSampleTotal(t *testing.T) {
	v, ok := Sample{AGBCarbon: stat(1.5), SOCCarbon: stat(2)}.Total().Float()
	require.True(t, ok)
	assert.Equal(t, 3.5, v)

	assert.False(t, Sample{AGBCarbon: stat(1)}.Total().OK())
}
