package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/climate"
	"co2nex/carbon-audit/audit-backend/internal/audit/forest"
	"co2nex/carbon-audit/audit-backend/internal/audit/vegetation"
	"co2nex/carbon-audit/audit-backend/pkg/geospatial"
)

// HTTPSource calls a JSON reduction service that fronts the imagery platform.
// It implements Reducer, SceneSource and GridSource.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPSource creates a client for baseURL. timeout bounds every request
// independently of the pipeline's per-call context.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Sources returns the client bound to every collaborator slot.
func (h *HTTPSource) Sources() Sources {
	return Sources{Reducer: h, Scenes: h, Grids: h}
}

type regionPayload struct {
	ID          string         `json:"id"`
	Coordinates [][2]float64   `json:"coordinates"`
	Holes       [][][2]float64 `json:"holes,omitempty"`
}

func encodeRegion(r *geospatial.Region) *regionPayload {
	if r == nil {
		return nil
	}
	return &regionPayload{ID: r.ID(), Coordinates: r.Coordinates(), Holes: r.Holes()}
}

type reducePayload struct {
	ReduceRequest
	Region *regionPayload `json:"region"`
}

type scenePayload struct {
	SceneRequest
	Region *regionPayload `json:"region"`
}

type gridPayload struct {
	GridRequest
	Region     *regionPayload `json:"region"`
	SearchArea [][2]float64   `json:"search_area,omitempty"`
}

func encodeGrid(req GridRequest) gridPayload {
	out := encodeGrid(req)
	if len(req.SearchArea) > 0 {
		for _, p := range req.SearchArea[0] {
			out.SearchArea = append(out.SearchArea, [2]float64{p[0], p[1]})
		}
	}
	return out
}

func (h *HTTPSource) Reduce(ctx context.Context, req ReduceRequest) (band.Statistic, error) {
	var out band.Statistic
	err := h.post(ctx, "/v1/reduce", reducePayload{ReduceRequest: req, Region: encodeRegion(req.Region)}, &out)
	return out, err
}

func (h *HTTPSource) Scenes(ctx context.Context, req SceneRequest) ([]vegetation.Scene, error) {
	var out []vegetation.Scene
	err := h.post(ctx, "/v1/scenes", scenePayload{SceneRequest: req, Region: encodeRegion(req.Region)}, &out)
	return out, err
}

func (h *HTTPSource) IndexScenes(ctx context.Context, req SceneRequest) ([]vegetation.IndexScene, error) {
	var out []vegetation.IndexScene
	err := h.post(ctx, "/v1/index-scenes", scenePayload{SceneRequest: req, Region: encodeRegion(req.Region)}, &out)
	return out, err
}

func (h *HTTPSource) ForestChange(ctx context.Context, req GridRequest) (*forest.Grid, error) {
	var out forest.Grid
	if err := h.post(ctx, "/v1/grids/forest-change", encodeGrid(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPSource) WaterSignals(ctx context.Context, req GridRequest) (*climate.WaterGrid, error) {
	var out climate.WaterGrid
	if err := h.post(ctx, "/v1/grids/water", encodeGrid(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPSource) FireDetections(ctx context.Context, req GridRequest) ([]forest.Detection, error) {
	var out []forest.Detection
	err := h.post(ctx, "/v1/fires", encodeGrid(req), &out)
	return out, err
}

func (h *HTTPSource) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("reduction service %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		h.logger.Debug("Reduction service error", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("reduction service %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
