package soil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
)

func raw(v float64) band.Statistic {
	return band.Of("raw", band.ReducerMean, v, 100)
}

func bulkProfile() Profile {
	return NewProfile(units.ConventionBulkProduct, Profile100,
		map[string]band.Statistic{
			"0-5cm": raw(180), "5-15cm": raw(150), "15-30cm": raw(110), "30-60cm": raw(80), "60-100cm": raw(60),
		},
		map[string]band.Statistic{
			"0-5cm": raw(120), "5-15cm": raw(128), "15-30cm": raw(135), "30-60cm": raw(140), "60-100cm": raw(142),
		})
}

func TestStockBulkProduct(t *testing.T) {
	calc, err := NewCalculator(units.ConventionBulkProduct)
	require.NoError(t, err)

	p := NewProfile(units.ConventionBulkProduct, Topsoil30,
		map[string]band.Statistic{"0-5cm": raw(200), "5-15cm": raw(150), "15-30cm": raw(100)},
		map[string]band.Statistic{"0-5cm": raw(120), "5-15cm": raw(130), "15-30cm": raw(140)})

	stock, err := calc.Stock(p)
	require.NoError(t, err)

	want := 200*120*0.001*0.05 + 150*130*0.001*0.10 + 100*140*0.001*0.15
	got, ok := stock.Total.Float()
	require.True(t, ok)
	assert.InDelta(t, want, got, 1e-9)
	assert.Len(t, stock.Layers, 3)
	assert.InDelta(t, 0.30, stock.DepthM, 1e-12)
}

func TestStockVolumetricIgnoresBulkDensity(t *testing.T) {
	calc, err := NewCalculator(units.ConventionVolumetric)
	require.NoError(t, err)

	p := NewProfile(units.ConventionVolumetric, Topsoil30,
		map[string]band.Statistic{"0-5cm": raw(4), "5-15cm": raw(3), "15-30cm": raw(2)},
		nil)

	stock, err := calc.Stock(p)
	require.NoError(t, err)

	// kg/m² = raw×10×depth, tC/ha = kg/m² × 10
	want := (4*10*0.05 + 3*10*0.10 + 2*10*0.15) * 10
	got, ok := stock.Total.Float()
	require.True(t, ok)
	assert.InDelta(t, want, got, 1e-9)
}

func TestStockIsAdditiveOverPartitions(t *testing.T) {
	calc, err := NewCalculator(units.ConventionBulkProduct)
	require.NoError(t, err)

	p := bulkProfile()
	whole, err := calc.Stock(p)
	require.NoError(t, err)
	total, _ := whole.Total.Float()

	for cut := 1; cut < len(p.Layers); cut++ {
		upper, err := calc.Stock(p.Split(0, cut))
		require.NoError(t, err)
		lower, err := calc.Stock(p.Split(cut, len(p.Layers)))
		require.NoError(t, err)

		u, _ := upper.Total.Float()
		l, _ := lower.Total.Float()
		assert.InDelta(t, total, u+l, 1e-9, "cut at layer %d", cut)
	}

	var sum float64
	for i := range p.Layers {
		single, err := calc.Stock(p.Split(i, i+1))
		require.NoError(t, err)
		v, _ := single.Total.Float()
		sum += v
	}
	assert.InDelta(t, total, sum, 1e-9)
}

func TestStockConfigurationErrors(t *testing.T) {
	calc, err := NewCalculator(units.ConventionBulkProduct)
	require.NoError(t, err)

	p := bulkProfile()
	p.NominalDepthM = 0.3
	_, err = calc.Stock(p)
	assert.ErrorIs(t, err, ErrProfileDepthMismatch)

	p = bulkProfile()
	p.Layers[2].TopM = 0.16
	_, err = calc.Stock(p)
	assert.ErrorIs(t, err, ErrLayerGap)

	p = bulkProfile()
	p.Layers[1].Convention = units.ConventionVolumetric
	_, err = calc.Stock(p)
	assert.ErrorIs(t, err, ErrMixedConventions)

	p = bulkProfile()
	p.Convention = units.ConventionVolumetric
	_, err = calc.Stock(p)
	assert.ErrorIs(t, err, ErrMixedConventions)

	_, err = calc.Stock(Profile{Convention: units.ConventionBulkProduct})
	assert.ErrorIs(t, err, ErrEmptyProfile)

	_, err = NewCalculator("unknown")
	assert.ErrorIs(t, err, units.ErrUnknownConvention)
}

func TestStockPropagatesNoData(t *testing.T) {
	calc, err := NewCalculator(units.ConventionBulkProduct)
	require.NoError(t, err)

	p := bulkProfile()
	p.Layers[3].BulkDensity = band.Missing("bdod_30-60cm", "masked")

	stock, err := calc.Stock(p)
	require.NoError(t, err)
	assert.Equal(t, band.StatusNoData, stock.Total.Status)
	assert.Nil(t, stock.Total.Value)
	assert.True(t, stock.Layers[0].Carbon.OK())
	assert.False(t, stock.Layers[3].Carbon.OK())
}

func TestStockOutOfRangeIsInvalid(t *testing.T) {
	calc, err := NewCalculator(units.ConventionBulkProduct)
	require.NoError(t, err)

	p := bulkProfile()
	p.Layers[0].OCD = raw(5000) // 5 kg C per kg soil

	stock, err := calc.Stock(p)
	require.NoError(t, err)
	assert.Equal(t, band.StatusInvalid, stock.Total.Status)
}
