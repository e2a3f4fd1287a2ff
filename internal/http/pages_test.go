package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/views"
)

type failingRenderer struct{}

func (failingRenderer) Render(w io.Writer, name string, p views.Page) error {
	_, _ = io.WriteString(w, "<html>partial")
	return errors.New("template exploded")
}

func postForm(h *Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	NewRouter(h, RouterOptions{}).ServeHTTP(w, req)
	return w
}

func noticeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	u, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	return u.Query().Get("notice")
}

func TestPages_Render(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "No weather data available"},
		{"/dashboard", "Kathmandu"},
		{"/current-weather", "Weather data unavailable"},
		{"/forecast", "Forecast"},
		{"/temperature-stats", "Temperature Stats"},
		{"/locations", "Locations"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			h, _, _ := newTestHandler(t)
			w := serve(h, "GET", tt.path, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q, want text/html", ct)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("body does not contain %q", tt.want)
			}
		})
	}
}

func TestPages_RefreshAndSeedPanel(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.PollInterval = 5 * time.Minute

	body := serve(h, "GET", "/dashboard", "").Body.String()
	if !strings.Contains(body, `content="300"`) {
		t.Error("page missing meta refresh of 300 seconds")
	}
	if !strings.Contains(body, `action="/admin/seed"`) {
		t.Error("seed panel missing while seeding is enabled")
	}

	h.SeedEnabled = false
	body = serve(h, "GET", "/dashboard", "").Body.String()
	if strings.Contains(body, `action="/admin/seed"`) {
		t.Error("seed panel shown while seeding is disabled")
	}
}

func TestPages_FahrenheitUnit(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := serve(h, "GET", "/current-weather?unit=F", "").Body.String()
	if !strings.Contains(body, "68") {
		t.Errorf("fallback 20°C should render as 68°F; body:\n%s", body)
	}
}

func TestPages_ReportFailureStillRenders(t *testing.T) {
	h, dash, _ := newTestHandler(t)
	dash.reportErr = errors.New("upstream down")

	w := serve(h, "GET", "/dashboard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Forecast unavailable right now.") {
		t.Error("page missing report error message")
	}
}

func TestPages_ForecastUsesStoredDays(t *testing.T) {
	h, _, store := newTestHandler(t)
	_, _ = store.SaveForecastDay(context.Background(), models.ForecastDay{
		City: "Kathmandu", Date: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), Temperature: 23, Description: "Sunny",
	})

	body := serve(h, "GET", "/forecast", "").Body.String()
	if !strings.Contains(body, "Sunny") {
		t.Error("stored forecast day not rendered")
	}
}

func TestPages_RenderErrorIs500(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.Views = failingRenderer{}

	w := serve(h, "GET", "/dashboard", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "partial") {
		t.Error("partial template output leaked into the error response")
	}
}

func TestPages_LocationForms(t *testing.T) {
	h, _, store := newTestHandler(t)

	notice := noticeOf(t, postForm(h, "/locations", url.Values{
		"name": {"Pokhara"}, "region": {"Gandaki"}, "lat": {"28.2096"}, "lon": {"83.9856"},
	}))
	if notice != "Location added." {
		t.Errorf("notice = %q, want Location added.", notice)
	}
	if len(store.locations) != 1 {
		t.Fatalf("stored %d locations, want 1", len(store.locations))
	}

	notice = noticeOf(t, postForm(h, "/locations", url.Values{"name": {"X"}, "lat": {"north"}, "lon": {"1"}}))
	if !strings.Contains(notice, "must be numbers") {
		t.Errorf("notice = %q, want a number error", notice)
	}

	notice = noticeOf(t, postForm(h, "/locations", url.Values{"name": {""}, "lat": {"1"}, "lon": {"1"}}))
	if !strings.HasPrefix(notice, "Invalid location") {
		t.Errorf("notice = %q, want an invalid location message", notice)
	}

	var id string
	for k := range store.locations {
		id = k
	}
	if notice := noticeOf(t, postForm(h, "/locations/"+id+"/delete", nil)); notice != "Location removed." {
		t.Errorf("delete notice = %q", notice)
	}
	if notice := noticeOf(t, postForm(h, "/locations/"+id+"/delete", nil)); notice != "Could not delete location." {
		t.Errorf("second delete notice = %q", notice)
	}
}

func TestPages_SeedForm(t *testing.T) {
	h, _, store := newTestHandler(t)

	notice := noticeOf(t, postForm(h, "/admin/seed", url.Values{"city": {"Pokhara"}}))
	if notice != "Demo data loaded for Pokhara." {
		t.Errorf("notice = %q", notice)
	}
	if len(store.observations) != 1 {
		t.Errorf("stored %d observations, want 1", len(store.observations))
	}

	h.SeedEnabled = false
	if w := postForm(h, "/admin/seed", url.Values{}); w.Code != http.StatusNotFound {
		t.Errorf("disabled seed form status = %d, want 404", w.Code)
	}
}
