package band

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfRejectsNonFinite(t *testing.T) {
	s := Of("NDVI", ReducerMean, math.NaN(), 10)
	assert.Equal(t, StatusNoData, s.Status)
	assert.Nil(t, s.Value)

	s = Of("NDVI", ReducerMean, 0.42, 10)
	v, ok := s.Float()
	assert.True(t, ok)
	assert.Equal(t, 0.42, v)
}

func TestNormalize(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, StatusNoData, Statistic{Band: "b", Status: StatusOK}.Normalize().Status)
	assert.Equal(t, StatusNoData, Statistic{Band: "b", Value: &nan}.Normalize().Status)

	one := 1.0
	s := Statistic{Band: "b", Value: &one, Status: StatusInvalid}.Normalize()
	assert.Equal(t, StatusInvalid, s.Status)
	assert.Nil(t, s.Value)

	s = Statistic{Band: "b", Value: &one}.Normalize()
	assert.Equal(t, StatusOK, s.Status)
}

func TestMapAndCheck(t *testing.T) {
	s := Of("ssm", ReducerMedian, 25, 3).Map(func(v float64) float64 { return v / 100 })
	v, _ := s.Float()
	assert.InDelta(t, 0.25, v, 1e-12)

	assert.Equal(t, StatusInvalid, Of("ssm", ReducerMedian, 1.5, 3).Check(0, 1).Status)
	assert.Equal(t, StatusOK, Of("ssm", ReducerMedian, 0.5, 3).Check(0, 1).Status)

	missing := Missing("ssm", "no scenes")
	assert.Equal(t, missing, missing.Map(func(v float64) float64 { return v * 2 }))
}

func TestWorst(t *testing.T) {
	ok := Of("a", ReducerMean, 1, 1)
	status, _ := Worst(ok, ok)
	assert.Equal(t, StatusOK, status)

	status, reason := Worst(ok, Missing("b", "timeout"), Invalid("c", "range"))
	assert.Equal(t, StatusInvalid, status)
	assert.Equal(t, "range", reason)

	status, reason = Worst(Missing("b", "timeout"), ok)
	assert.Equal(t, StatusNoData, status)
	assert.Equal(t, "timeout", reason)
}
