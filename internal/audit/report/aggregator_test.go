package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
)

func filled() *Aggregator {
	a := NewAggregator()
	for _, d := range Catalogue() {
		if d.Text() {
			a.SetText(d.Key, "Moderate", band.StatusOK, "")
			continue
		}
		a.Set(d.Key, band.Of(string(d.Key), band.ReducerMean, 1.23456, 1))
	}
	return a
}

func header() Header {
	at := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	return Header{Metadata: Metadata{ProjectID: "p-1", RegionID: "farm"}, AsOf: at, GeneratedAt: at}
}

func TestFormatPrecisionClasses(t *testing.T) {
	cases := []struct {
		key  MetricKey
		v    float64
		text string
	}{
		{KeyFarmArea, 400.0049, "400.00"},
		{KeyNDVIMean, 0.40467, "0.405"},
		{KeyNDVIHealth, 40.467, "40.5"},
		{KeyActiveFires, 3, "3"},
		{KeyNetSequesteredCarbon, -2.5100000001, "-2.51"},
		{KeyNDVIChange, -0.0001, "0.000"},
	}
	for _, tc := range cases {
		def, ok := Lookup(tc.key)
		require.True(t, ok)
		m := Format(def, band.Of("x", band.ReducerMean, tc.v, 1))
		assert.Equal(t, tc.text, m.Text, tc.key)
		assert.Equal(t, band.StatusOK, m.Status)
		require.NotNil(t, m.Value)
	}
}

func TestFormatNonOK(t *testing.T) {
	def, _ := Lookup(KeySoilMoisture)

	m := Format(def, band.Missing("soil_moisture", "no SMAP scenes"))
	assert.Equal(t, TextNoData, m.Text)
	assert.Equal(t, band.StatusNoData, m.Status)
	assert.Equal(t, "no SMAP scenes", m.Reason)
	assert.Nil(t, m.Value)

	m = Format(def, band.Invalid("soil_moisture", "value 2.5 outside [0, 1]"))
	assert.Equal(t, TextInvalid, m.Text)
	assert.Equal(t, band.StatusInvalid, m.Status)
	assert.NotEmpty(t, m.Reason)

	v := 0.3
	m = Format(def, band.Statistic{Status: band.StatusOK, Value: &v})
	assert.Equal(t, "0.300", m.Text)
}

func TestBuildRefusesIncompleteReport(t *testing.T) {
	a := NewAggregator()
	a.Set(KeyFarmArea, band.Of("area", band.ReducerSum, 400, 1))

	r, err := a.Build(header())
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Nil(t, r)
}

func TestBuildRejectsUnknownKey(t *testing.T) {
	a := filled()
	a.Set("not_a_metric", band.Of("x", band.ReducerMean, 1, 1))

	_, err := a.Build(header())
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestBuildCompleteReport(t *testing.T) {
	a := filled().Caveat("proxy").Caveat("proxy").Trace(Step{Name: "area"}).Trace(Step{Name: "soc"})

	r, err := a.Build(header())
	require.NoError(t, err)
	assert.True(t, r.Complete())
	assert.Len(t, r.Metrics, len(Catalogue()))
	assert.Equal(t, []string{"proxy"}, r.Caveats)
	assert.Equal(t, 2, r.Trace[1].StepNumber)
	assert.Equal(t, "Moderate", r.Metric(KeyHabitatStatus).Text)
	assert.Equal(t, KeyFarmArea, r.Ordered()[0].Key)
	assert.Equal(t, len(Catalogue()), r.Counts()[band.StatusOK])
}

func TestSetTextWithoutLabelIsNoData(t *testing.T) {
	a := filled()
	a.SetText(KeyHabitatStatus, "", band.StatusNoData, "missing canopy height")

	r, err := a.Build(header())
	require.NoError(t, err)
	m := r.Metric(KeyHabitatStatus)
	assert.Equal(t, TextNoData, m.Text)
	assert.Equal(t, "missing canopy height", m.Reason)
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := filled().Build(header())
	require.NoError(t, err)
	second, err := filled().Build(header())
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))
}

func TestReportOnlyUsesCatalogueKeys(t *testing.T) {
	r := &AuditReport{Metrics: map[MetricKey]Metric{}}
	assert.False(t, r.Complete())
	assert.Len(t, r.Missing(), len(Catalogue()))
	assert.Equal(t, TextNoData, r.Metric("nope").Text)
}
