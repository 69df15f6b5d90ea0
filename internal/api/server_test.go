package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgazza/octopus-insights/internal/report"
	"github.com/mgazza/octopus-insights/pkg/consumption"
	"github.com/mgazza/octopus-insights/pkg/tariff"
)

var london, _ = time.LoadLocation("Europe/London")

type mockService struct {
	style     consumption.PresentationStyle
	reference time.Time
	err       error
	panics    bool
}

func (m *mockService) Insights(_ context.Context, style consumption.PresentationStyle, reference time.Time) (*report.Report, error) {
	if m.panics {
		panic("boom")
	}
	m.style, m.reference = style, reference
	if m.err != nil {
		return nil, m.err
	}
	return &report.Report{Style: style.String(), PeriodStart: reference}, nil
}

func (m *mockService) Tariff(_ context.Context, code string) (*report.TariffSummary, error) {
	if _, err := tariff.ParseCode(code); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	summary := report.Summarize(tariff.New(code, 45.48, tariff.RateFields{}))
	return &summary, nil
}

func serve(t *testing.T, svc Service, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	s := New(svc, WithLocation(london), WithAllowedOrigins([]string{"https://example.com"}))
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	rec := serve(t, &mockService{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	rec := serve(t, &mockService{}, http.MethodGet, "/health", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = serve(t, &mockService{}, http.MethodGet, "/health", map[string]string{"X-Request-ID": "bad id!"})
	assert.NotEqual(t, "bad id!", rec.Header().Get("X-Request-ID"))
}

func TestInsights(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		style     consumption.PresentationStyle
		reference time.Time
	}{
		{
			name:  "defaults",
			query: "",
			style: consumption.DayHalfHourly,
		},
		{
			name:      "plain date in server zone",
			query:     "?style=week-seven-days&date=2024-07-01",
			style:     consumption.WeekSevenDays,
			reference: time.Date(2024, 7, 1, 0, 0, 0, 0, london),
		},
		{
			name:      "rfc3339",
			query:     "?style=YEAR-TWELVE-MONTHS&date=2024-03-31T01:30:00Z",
			style:     consumption.YearTwelveMonths,
			reference: time.Date(2024, 3, 31, 1, 30, 0, 0, time.UTC),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			svc := &mockService{}
			rec := serve(t, svc, http.MethodGet, "/api/v1/insights"+test.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			assert.Equal(t, test.style, svc.style)
			assert.True(t, test.reference.Equal(svc.reference), "got %s", svc.reference)

			var rep report.Report
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
			assert.Equal(t, test.style.String(), rep.Style)
		})
	}
}

func TestInsightsBadRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown style", query: "?style=fortnightly"},
		{name: "bad date", query: "?date=31/03/2024"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := serve(t, &mockService{}, http.MethodGet, "/api/v1/insights"+test.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, codeBadRequest, body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestInsightsServiceError(t *testing.T) {
	svc := &mockService{err: fmt.Errorf("failed to fetch consumption: %w", errors.New("401 Unauthorized"))}
	rec := serve(t, svc, http.MethodGet, "/api/v1/insights", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, codeInternal, body.Code)
	assert.Contains(t, body.Message, "401 Unauthorized")
}

func TestTariff(t *testing.T) {
	rec := serve(t, &mockService{}, http.MethodGet, "/api/v1/tariffs/E-2R-OE-FIX-12M-24-04-11-C", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary report.TariffSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "OE-FIX-12M-24-04-11", summary.ProductCode)
	assert.Equal(t, "C", summary.Region)
	assert.False(t, summary.SingleRate)
}

func TestTariffInvalidCode(t *testing.T) {
	rec := serve(t, &mockService{}, http.MethodGet, "/api/v1/tariffs/AGILE", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeBadRequest, decodeError(t, rec).Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	rec := serve(t, &mockService{panics: true}, http.MethodGet, "/api/v1/insights", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, codeInternal, decodeError(t, rec).Code)
}

func TestCORS(t *testing.T) {
	rec := serve(t, &mockService{}, http.MethodGet, "/health", map[string]string{"Origin": "https://example.com"})
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(t, &mockService{}, http.MethodGet, "/health", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	serve(t, &mockService{}, http.MethodGet, "/health", nil)
	rec := serve(t, &mockService{}, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
