package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/polkiloo/plotcatalog/internal/config"
	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/server/http/handlers"
	"github.com/polkiloo/plotcatalog/internal/server/http/middleware"
	testhelpers "github.com/polkiloo/plotcatalog/internal/test"
)

func newEngine(facade handlers.CatalogFacade, maxBytes int64) *gin.Engine {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	engine := Setup(facade, &config.Config{MaxUploadBytes: maxBytes}, logger)
	gin.SetMode(gin.TestMode)
	return engine
}

func TestSetupRoutes(t *testing.T) {
	orderID := uuid.New()
	plotID := uuid.New()
	engine := newEngine(testhelpers.CatalogFacadeStub{}, 1<<20)

	reserve, _ := json.Marshal(map[string]string{
		"first_name": "Asha",
		"last_name":  "Mollel",
		"phone":      "+255712000111",
		"email":      "asha@example.com",
	})

	cases := []struct {
		name   string
		method string
		path   string
		body   []byte
		want   int
	}{
		{"health", http.MethodGet, "/health", nil, http.StatusOK},
		{"search", http.MethodGet, "/api/plots?district=Kinondoni", nil, http.StatusOK},
		{"plot by id", http.MethodGet, "/api/plots/" + plotID.String(), nil, http.StatusOK},
		{"plot by code", http.MethodGet, "/api/plots/KIN-0001", nil, http.StatusOK},
		{"reserve", http.MethodPost, "/api/plots/" + plotID.String() + "/orders", reserve, http.StatusCreated},
		{"stats", http.MethodGet, "/api/stats", nil, http.StatusOK},
		{"export", http.MethodGet, "/api/exports/plots.xlsx", nil, http.StatusOK},
		{"orders", http.MethodGet, "/api/orders", nil, http.StatusOK},
		{"order", http.MethodGet, "/api/orders/" + orderID.String(), nil, http.StatusOK},
		{"approve", http.MethodPost, "/api/orders/" + orderID.String() + "/approve", nil, http.StatusOK},
		{"reject", http.MethodPost, "/api/orders/" + orderID.String() + "/reject", []byte(`{"note":"duplicate"}`), http.StatusOK},
		{"imports", http.MethodGet, "/api/imports", nil, http.StatusOK},
		{"import", http.MethodGet, "/api/imports/kinondoni-2024", nil, http.StatusOK},
		{"unknown", http.MethodGet, "/api/user/orders", nil, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != nil {
				body = bytes.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			if tc.body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			resp := httptest.NewRecorder()
			engine.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
			if resp.Header().Get(middleware.RequestIDHeader) == "" {
				t.Fatal("expected request id header")
			}
		})
	}
}

func TestImportSubmissionBodyLimit(t *testing.T) {
	var called bool
	facade := testhelpers.CatalogFacadeStub{
		ImportFacadeStub: testhelpers.ImportFacadeStub{
			SubmitFn: func(context.Context, model.ImportSubmission) (*model.ImportRecord, error) {
				called = true
				return nil, errors.New("unexpected")
			},
		},
	}
	engine := newEngine(facade, 64)

	payload := `{"type":"FeatureCollection","features":[` + strings.Repeat(" ", 128) + `]}`
	req := httptest.NewRequest(http.MethodPost, "/api/imports?dataset=big", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/geo+json")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
	if called {
		t.Fatal("facade must not be called for oversized bodies")
	}
}

func TestQueueFullIsServiceUnavailable(t *testing.T) {
	facade := testhelpers.CatalogFacadeStub{
		ImportFacadeStub: testhelpers.ImportFacadeStub{
			SubmitFn: func(context.Context, model.ImportSubmission) (*model.ImportRecord, error) {
				return nil, domainErrors.ErrQueueFull
			},
		},
	}
	engine := newEngine(facade, 1<<20)

	body := `{"dataset":"d1","features":{"type":"FeatureCollection","features":[]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/imports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestPlotCodeWithSlashes(t *testing.T) {
	var got string
	facade := testhelpers.CatalogFacadeStub{
		PlotFacadeStub: testhelpers.PlotFacadeStub{
			PlotByCodeFn: func(_ context.Context, code string) (*model.LandPlot, error) {
				got = code
				if code != "DSM/KINONDONI/001" {
					return nil, domainErrors.ErrNotFound
				}
				return &model.LandPlot{ID: uuid.New(), PlotCode: code, Status: model.PlotStatusAvailable}, nil
			},
		},
	}
	engine := newEngine(facade, 1<<20)

	cases := []struct {
		name string
		path string
		want int
		code string
	}{
		{"escaped slashes", "/api/plots/DSM%2FKINONDONI%2F001", http.StatusOK, "DSM/KINONDONI/001"},
		{"lowercase escape", "/api/plots/DSM%2fKINONDONI%2f001", http.StatusOK, "DSM/KINONDONI/001"},
		{"escaped space", "/api/plots/MBY%20001", http.StatusNotFound, "MBY 001"},
		{"plain code", "/api/plots/MBY-0001", http.StatusNotFound, "MBY-0001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got = ""
			resp := httptest.NewRecorder()
			engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
			if got != tc.code {
				t.Fatalf("expected lookup of %q, got %q", tc.code, got)
			}
		})
	}

	// Routes without escapes are unaffected.
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected order lookup to succeed, got %d", resp.Code)
	}
}

var _ handlers.CatalogFacade = testhelpers.CatalogFacadeStub{}
