package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

func reductionServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/reduce", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Dataset string `json:"dataset"`
			Band    string `json:"band"`
			Region  struct {
				ID          string       `json:"id"`
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"region"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.Region.ID != "farm-1" || len(body.Region.Coordinates) != 5 {
			http.Error(w, "bad region", http.StatusBadRequest)
			return
		}
		if body.Dataset == DatasetSMAP {
			http.Error(w, "dataset offline", http.StatusServiceUnavailable)
			return
		}
		v := 42.0
		_ = json.NewEncoder(w).Encode(band.Statistic{Band: body.Band, Reducer: band.ReducerMean, Value: &v, Count: 9, Status: band.StatusOK})
	})
	mux.HandleFunc("/v1/scenes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	mux.HandleFunc("/v1/index-scenes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	mux.HandleFunc("/v1/grids/forest-change", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/v1/grids/water", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"width":1,"height":1,"cell_size_m":100,"vv":[-25]}`))
	})
	mux.HandleFunc("/v1/fires", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			BufferMeters float64      `json:"buffer_meters"`
			SearchArea   [][2]float64 `json:"search_area"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.BufferMeters != 5000 || len(body.SearchArea) < 4 {
			http.Error(w, "missing search area", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("[]"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSourceReduce(t *testing.T) {
	srv := reductionServer(t)
	src := NewHTTPSource(srv.URL+"/", 2*time.Second, zap.NewNop())

	s, err := src.Reduce(context.Background(), ReduceRequest{Dataset: DatasetGEDIL4A, Band: "agbd", Region: farm(t), Reducer: band.ReducerMean})
	require.NoError(t, err)
	v, ok := s.Float()
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	_, err = src.Reduce(context.Background(), ReduceRequest{Dataset: DatasetSMAP, Band: "sm_surface", Region: farm(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "dataset offline")
}

func TestHTTPSourceDrivesPipeline(t *testing.T) {
	srv := reductionServer(t)
	src := NewHTTPSource(srv.URL, 2*time.Second, zap.NewNop())
	p := newPipeline(t, DefaultConfig(), src.Sources())

	r, err := p.Run(context.Background(), Input{Region: farm(t), AsOf: asOf})
	require.NoError(t, err)
	require.True(t, r.Complete())

	assert.Equal(t, band.StatusNoData, r.Metric(report.KeySoilMoisture).Status)
	assert.Contains(t, r.Metric(report.KeySoilMoisture).Reason, "503")
	assert.Equal(t, band.StatusNoData, r.Metric(report.KeyNDVIMean).Status)
	assert.Equal(t, band.StatusNoData, r.Metric(report.KeyForestGain).Status)
	assert.Equal(t, 1.0, value(t, r, report.KeySurfaceWaterArea))
	assert.Equal(t, 100.0, value(t, r, report.KeySurfaceWaterFraction))
	assert.Equal(t, 0.0, value(t, r, report.KeyActiveFires))
	assert.Equal(t, 42.0, value(t, r, report.KeyGEDIAGB))
}
