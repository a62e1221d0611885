package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growcore/internal/core"
	"growcore/pkg/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
	svc    *core.Service
	room   core.Room
	strain core.Strain
}

func newAPIFixture(t *testing.T, opts Options) *apiFixture {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	f := &apiFixture{t: t, router: NewRouter(svc, opts), svc: svc}

	var facility core.Facility
	f.do(http.MethodPost, "/api/v1/facilities", map[string]any{"name": "North"}, http.StatusCreated, &facility)
	f.do(http.MethodPost, "/api/v1/rooms", map[string]any{
		"facility_id": facility.ID,
		"name":        "Veg",
		"layout":      domain.GridLayout(1, 2, 2, 1),
	}, http.StatusCreated, &f.room)
	f.do(http.MethodPost, "/api/v1/strains", map[string]any{"name": "OG"}, http.StatusCreated, &f.strain)
	return f
}

func (f *apiFixture) request(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) do(method, path string, body any, status int, out any) {
	f.t.Helper()
	rec := f.request(method, path, body)
	require.Equal(f.t, status, rec.Code, rec.Body.String())
	if out != nil {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (f *apiFixture) placeBody(row, col int) map[string]any {
	return map[string]any{"room_id": f.room.ID, "floor": 1, "row": row, "col": col, "strain_id": f.strain.ID}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t, Options{})
	rec := f.request(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["events"])
}

func TestPlaceAndMoveOverHTTP(t *testing.T) {
	f := newAPIFixture(t, Options{})

	var placed core.CommandResult
	f.do(http.MethodPost, "/api/v1/plants", f.placeBody(0, 0), http.StatusCreated, &placed)
	require.NotNil(t, placed.Plant)
	require.Len(t, placed.Zones, 1)
	assert.Equal(t, 0, placed.Zones[0].Available)

	rec := f.request(http.MethodPost, "/api/v1/plants", f.placeBody(0, 0))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, core.CodeSlotFull, decodeError(t, rec).Code)

	rec = f.request(http.MethodPost, "/api/v1/plants", f.placeBody(5, 0))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, core.CodeInvalidCoordinate, decodeError(t, rec).Code)

	var moved core.CommandResult
	f.do(http.MethodPost, "/api/v1/plants/"+placed.Plant.ID+"/move",
		map[string]any{"room_id": f.room.ID, "floor": 1, "row": 1, "col": 1}, http.StatusOK, &moved)
	require.NotNil(t, moved.Plant.Coordinate)
	assert.Equal(t, 1, moved.Plant.Coordinate.Row)
	assert.Len(t, moved.Zones, 2)

	var view core.FloorView
	f.do(http.MethodGet, "/api/v1/rooms/"+f.room.ID+"/floors/1", nil, http.StatusOK, &view)
	assert.Equal(t, []string{placed.Plant.ID}, view.Grid[core.GridKey(1, 1)].Occupants)
	assert.Empty(t, view.Grid[core.GridKey(0, 0)].Occupants)

	rec = f.request(http.MethodGet, "/api/v1/rooms/"+f.room.ID+"/floors/one", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	f := newAPIFixture(t, Options{})

	rec := f.request(http.MethodGet, "/api/v1/plants/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, core.CodeNotFound, decodeError(t, rec).Code)

	rec = f.request(http.MethodGet, "/api/v1/plant_batches/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, core.CodeBatchNotFound, decodeError(t, rec).Code)

	rec = f.request(http.MethodPost, "/api/v1/plants", `{"room_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeInvalidInput, decodeError(t, rec).Code)

	rec = f.request(http.MethodPost, "/api/v1/plants/x/destroy", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTagsOverHTTP(t *testing.T) {
	f := newAPIFixture(t, Options{})

	var imported core.ImportResult
	f.do(http.MethodPost, "/api/v1/metrc_tags/import", map[string]any{"tags": []string{"t1", "T1", "T2"}}, http.StatusCreated, &imported)
	assert.Equal(t, 2, imported.CreatedCount)
	assert.Equal(t, 1, imported.ErrorCount)
	require.Len(t, imported.Errors, 1)
	assert.Equal(t, 1, imported.Errors[0].Index)
	assert.Equal(t, core.CodeTagDuplicate, imported.Errors[0].Code)

	var placed core.CommandResult
	f.do(http.MethodPost, "/api/v1/plants", f.placeBody(0, 1), http.StatusCreated, &placed)
	id := placed.Plant.ID

	rec := f.request(http.MethodPost, "/api/v1/plants/"+id+"/tag", map[string]any{"tag": "T1"}, ActorHeader, "grower-7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.request(http.MethodPost, "/api/v1/metrc_tags/T1/retire", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var tags struct {
		Data []core.MetrcTag `json:"data"`
	}
	f.do(http.MethodGet, "/api/v1/metrc_tags?status=available", nil, http.StatusOK, &tags)
	require.Len(t, tags.Data, 1)
	assert.Equal(t, "T2", tags.Data[0].Tag)

	var events struct {
		Data []core.PlantEvent `json:"data"`
	}
	f.do(http.MethodGet, "/api/v1/plants/"+id+"/events", nil, http.StatusOK, &events)
	var tagged *core.PlantEvent
	for i := range events.Data {
		if events.Data[i].EventType == domain.EventTagged {
			tagged = &events.Data[i]
		}
	}
	require.NotNil(t, tagged)
	assert.Equal(t, "grower-7", tagged.Actor)
}

func TestAuditEventsPagination(t *testing.T) {
	f := newAPIFixture(t, Options{})
	f.do(http.MethodPost, "/api/v1/plants", f.placeBody(0, 0), http.StatusCreated, nil)

	var page EventPageResponse
	f.do(http.MethodGet, "/api/v1/audit_events?limit=2", nil, http.StatusOK, &page)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 4, page.Meta.Total)
	assert.Greater(t, page.Data[0].Seq, page.Data[1].Seq)

	var raw map[string]any
	f.do(http.MethodGet, "/api/v1/audit_events?limit=1", nil, http.StatusOK, &raw)
	assert.NotContains(t, raw, "total")
	require.Contains(t, raw, "meta")
	assert.EqualValues(t, 4, raw["meta"].(map[string]any)["total"])

	f.do(http.MethodGet, "/api/v1/audit_events?trackable_type=strain", nil, http.StatusOK, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.Meta.Total)
	assert.Equal(t, f.strain.ID, page.Data[0].TrackableID)

	rec := f.request(http.MethodGet, "/api/v1/audit_events?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, Options{})
	var placed core.CommandResult
	f.do(http.MethodPost, "/api/v1/plants", f.placeBody(1, 0), http.StatusCreated, &placed)
	id := placed.Plant.ID

	var res core.CommandResult
	f.do(http.MethodPost, "/api/v1/plants/"+id+"/advance", nil, http.StatusOK, &res)
	assert.Equal(t, domain.PhaseVegetative, res.Plant.Phase)
	f.do(http.MethodPost, "/api/v1/plants/"+id+"/phase", map[string]any{"growth_phase": "flowering"}, http.StatusOK, &res)
	assert.Equal(t, domain.PhaseFlowering, res.Plant.Phase)
	f.do(http.MethodPost, "/api/v1/plants/"+id+"/notes", map[string]any{"note": "trichomes amber"}, http.StatusOK, nil)

	f.do(http.MethodPost, "/api/v1/plants/"+id+"/harvest", map[string]any{"harvest_name": "Spring", "wet_weight": 410.5}, http.StatusOK, &res)
	require.NotNil(t, res.Harvest)
	assert.Equal(t, "Spring", res.Harvest.Name)
	assert.Nil(t, res.Plant.Coordinate)

	rec := f.request(http.MethodPost, "/api/v1/plants/"+id+"/advance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, core.CodePlantNotActive, decodeError(t, rec).Code)

	f.do(http.MethodPost, "/api/v1/harvests/"+res.Harvest.ID+"/status", map[string]any{"status": "drying"}, http.StatusOK, nil)
	rec = f.request(http.MethodPost, "/api/v1/harvests/"+res.Harvest.ID+"/status", map[string]any{"status": "active"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "growcore_test_total", Help: "test"}))
	f := newAPIFixture(t, Options{Gatherer: registry})
	rec := f.request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "growcore_test_total")

	bare := newAPIFixture(t, Options{})
	assert.Equal(t, http.StatusNotFound, bare.request(http.MethodGet, "/metrics", nil).Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		core.CodeInvalidCoordinate: http.StatusUnprocessableEntity,
		core.CodeSlotFull:          http.StatusConflict,
		core.CodeTagDuplicate:      http.StatusConflict,
		core.CodeBatchNotFound:     http.StatusNotFound,
		core.CodeInvalidInput:      http.StatusBadRequest,
		core.CodeRuleViolation:     http.StatusConflict,
		"":                         http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), code)
	}
}

func TestRateLimit(t *testing.T) {
	// the fixture spends three of the four tokens
	f := newAPIFixture(t, Options{RateLimit: 0.001, RateBurst: 4})
	require.Equal(t, http.StatusOK, f.request(http.MethodGet, "/api/v1/strains", nil).Code)

	rec := f.request(http.MethodGet, "/api/v1/strains", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimited, decodeError(t, rec).Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, f.request(http.MethodGet, "/healthz", nil).Code)
}
