package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/LASER-IDEA/white-paper-sub000/internal/engine"
	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/internal/indices"
	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
	"github.com/LASER-IDEA/white-paper-sub000/internal/middleware"
	"github.com/LASER-IDEA/white-paper-sub000/internal/services"
)

const flightsCSV = `date,region,entity,duration,distance
2024-01-05,north,acme,30,12
2024-01-20,south,beta,45,20
2024-02-03,north,beta,15,6
`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := infrastructure.NewDiscardLogger()

	eng, err := engine.New(engine.WithLogger(logger))
	require.NoError(t, err)

	errorHandler := apierrors.NewErrorHandler(logger, false)
	h := NewIndexHandler(services.NewIndexService(eng, logger), middleware.NewValidator(logger), logger, errorHandler)

	r := chi.NewRouter()
	r.Use(middleware.BodyLimit(1 << 20))
	r.Mount("/api/v1/indices", h.Routes())
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestComputeFormats(t *testing.T) {
	router := newTestRouter(t)

	workbook := func(t *testing.T) []byte {
		f := excelize.NewFile()
		defer f.Close()
		sheet := f.GetSheetName(0)
		for i, line := range strings.Split(strings.TrimSpace(flightsCSV), "\n") {
			cells := strings.Split(line, ",")
			row := make([]interface{}, len(cells))
			for j, c := range cells {
				row[j] = c
			}
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sheet, cell, &row))
		}
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)
		return buf.Bytes()
	}

	tests := []struct {
		name        string
		contentType string
		body        func(t *testing.T) []byte
	}{
		{"csv", "text/csv", func(*testing.T) []byte { return []byte(flightsCSV) }},
		{"json", "application/json", func(*testing.T) []byte {
			return []byte(`[
				{"date": "2024-01-05", "region": "north", "entity": "acme", "duration": 30, "distance": 12},
				{"date": "2024-01-20", "region": "south", "entity": "beta", "duration": 45, "distance": 20},
				{"date": "2024-02-03", "region": "north", "entity": "beta", "duration": 15, "distance": 6}
			]`)
		}},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/v1/indices", tt.contentType, tt.body(t))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["run_id"])
			assert.Len(t, body["results"], len(indices.Catalog()))

			report := body["validation_report"].(map[string]interface{})
			assert.Equal(t, float64(3), report["valid_rows"])
		})
	}
}

func TestComputeErrors(t *testing.T) {
	router := newTestRouter(t)

	t.Run("missing column is 422", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/indices", "text/csv",
			[]byte("date,region,entity,distance\n2024-01-01,X,acme,1\n"))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, apierrors.TypeMissingColumn, body["type"])
		assert.Equal(t, []interface{}{"duration"}, body["missing_fields"])
	})

	t.Run("malformed base_start is 400", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/indices?base_start=01/02/2024", "text/csv", []byte(flightsCSV))
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, apierrors.TypeValidation, body["type"])
		details := body["details"].([]interface{})
		require.Len(t, details, 1)
		assert.Equal(t, "base_start", details[0].(map[string]interface{})["field"])
	})

	t.Run("inverted base period is 400", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/indices?base_start=2024-02-01&base_end=2024-01-01", "text/csv", []byte(flightsCSV))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-integer ranking_limit is 400", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/indices?ranking_limit=ten", "text/csv", []byte(flightsCSV))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown content type is 415", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/indices", "application/xml", []byte("<flights/>"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("unreadable json is 400", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/indices", "application/json", []byte(`{"date": 1}`))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierrors.TypeUnreadableInput, decodeBody(t, rec)["type"])
	})

	t.Run("oversized body is 413", func(t *testing.T) {
		big := []byte(flightsCSV + strings.Repeat("2024-01-05,north,acme,30,12\n", 50000))
		rec := doRequest(t, router, http.MethodPost, "/api/v1/indices", "text/csv", big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestCatalog(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/indices/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(len(indices.Catalog())), body["count"])
	first := body["indices"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "traffic_index", first["id"])
	assert.Equal(t, "time_series", first["shape"])

	t.Run("describe", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/indices/catalog/night_share", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Night Operations Share", decodeBody(t, rec)["title"])
	})

	t.Run("unknown index is 404", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/indices/catalog/nope", "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apierrors.TypeNotFound, decodeBody(t, rec)["type"])
	})

	t.Run("malformed index id is 400", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/indices/catalog/Night-Share", "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, apierrors.TypeValidation, body["type"])
		details := body["details"].([]interface{})
		require.Len(t, details, 1)
		field := details[0].(map[string]interface{})
		assert.Equal(t, "index_id", field["field"])
		assert.Contains(t, field["message"], "traffic_index")
	})
}
