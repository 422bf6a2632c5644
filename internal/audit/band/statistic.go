package band

import (
	"fmt"
	"math"
)

// Status tags every value flowing through the audit pipeline.
type Status string

const (
	StatusOK      Status = "ok"
	StatusNoData  Status = "no-data"
	StatusInvalid Status = "invalid"
)

// Reducer names the spatial or temporal reduction applied to a band.
type Reducer string

const (
	ReducerMean       Reducer = "mean"
	ReducerMedian     Reducer = "median"
	ReducerStdDev     Reducer = "stddev"
	ReducerPercentile Reducer = "percentile"
	ReducerSum        Reducer = "sum"
	ReducerCount      Reducer = "count"
	ReducerMin        Reducer = "min"
	ReducerMax        Reducer = "max"
)

// Valid reports whether r is a known reducer.
func (r Reducer) Valid() bool {
	switch r {
	case ReducerMean, ReducerMedian, ReducerStdDev, ReducerPercentile,
		ReducerSum, ReducerCount, ReducerMin, ReducerMax:
		return true
	}
	return false
}

// Statistic is one band reduced over one region and window. A nil Value
// always carries a non-ok Status.
type Statistic struct {
	Band       string   `json:"band"`
	Reducer    Reducer  `json:"reducer"`
	Percentile float64  `json:"percentile,omitempty"`
	Value      *float64 `json:"value"`
	Count      int      `json:"count"`
	Status     Status   `json:"status"`
	Reason     string   `json:"reason,omitempty"`
}

// Of builds an ok statistic, or no-data when v is NaN or infinite.
func Of(name string, reducer Reducer, v float64, count int) Statistic {
	s := Statistic{Band: name, Reducer: reducer, Count: count}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		s.Status = StatusNoData
		s.Reason = "non-finite value"
		return s
	}
	s.Value = &v
	s.Status = StatusOK
	return s
}

// Missing builds a no-data statistic.
func Missing(name, reason string) Statistic {
	return Statistic{Band: name, Status: StatusNoData, Reason: reason}
}

// Invalid builds an out-of-range statistic. The rejected value is dropped.
func Invalid(name, reason string) Statistic {
	return Statistic{Band: name, Status: StatusInvalid, Reason: reason}
}

// Float returns the value when the statistic is usable.
func (s Statistic) Float() (float64, bool) {
	if s.Status != StatusOK || s.Value == nil {
		return 0, false
	}
	v := *s.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// OK reports whether the statistic carries a usable value.
func (s Statistic) OK() bool {
	_, ok := s.Float()
	return ok
}

// Normalize tags a statistic whose shape does not match its status, the way a
// transport layer may return an ok status with a null or NaN value.
func (s Statistic) Normalize() Statistic {
	if s.Status == "" {
		s.Status = StatusOK
	}
	if s.Status == StatusOK {
		if s.Value == nil {
			return Missing(s.Band, "null value")
		}
		if v := *s.Value; math.IsNaN(v) || math.IsInf(v, 0) {
			return Missing(s.Band, "non-finite value")
		}
	} else {
		s.Value = nil
	}
	return s
}

// Map applies fn to an ok value and passes non-ok statistics through.
func (s Statistic) Map(fn func(float64) float64) Statistic {
	v, ok := s.Float()
	if !ok {
		return s
	}
	out := Of(s.Band, s.Reducer, fn(v), s.Count)
	out.Percentile = s.Percentile
	return out
}

// Check tags the statistic invalid when its value falls outside [min, max].
func (s Statistic) Check(min, max float64) Statistic {
	v, ok := s.Float()
	if !ok {
		return s
	}
	if v < min || v > max {
		out := Invalid(s.Band, fmt.Sprintf("value %g outside [%g, %g]", v, min, max))
		out.Reducer = s.Reducer
		out.Count = s.Count
		return out
	}
	return s
}

// Worst returns the most severe non-ok status among the inputs with the
// reason of the first statistic that had it.
func Worst(stats ...Statistic) (Status, string) {
	status, reason := StatusOK, ""
	for _, s := range stats {
		switch {
		case s.Status == StatusInvalid && status != StatusInvalid:
			status, reason = StatusInvalid, s.Reason
		case s.Status == StatusNoData && status == StatusOK:
			status, reason = StatusNoData, s.Reason
		case s.Status == StatusOK && !s.OK() && status == StatusOK:
			status, reason = StatusNoData, "null value"
		}
	}
	return status, reason
}
