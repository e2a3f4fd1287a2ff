package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

var drivers = []string{DriverCGO, DriverPureGo}

// newTestStore opens an in-memory store whose clock advances one second per call.
func newTestStore(t *testing.T, driver string) *Store {
	t.Helper()
	s, err := Open(Options{Driver: driver, Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open(%s) error = %v", driver, err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	base := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s *Store)) {
	for _, d := range drivers {
		t.Run(d, func(t *testing.T) {
			fn(t, newTestStore(t, d))
		})
	}
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, driver, path string
		want               string
		wantErr            bool
	}{
		{"cgo memory", DriverCGO, ":memory:", "file::memory:?_foreign_keys=on&_busy_timeout=5000", false},
		{"pure memory", DriverPureGo, ":memory:", "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", false},
		{"file uri with query", DriverCGO, "file:x.db?cache=shared", "file:x.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", false},
		{"plain path", DriverPureGo, filepath.Join(dir, "sub", "w.db"), "file:" + filepath.Join(dir, "sub", "w.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", false},
		{"unknown driver", "postgres", "x.db", "", true},
		{"empty path", DriverCGO, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.driver, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildDSN() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_FileDatabaseMigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "weather.db")
	for i := 0; i < 2; i++ {
		s, err := Open(Options{Driver: DriverPureGo, Path: path})
		if err != nil {
			t.Fatalf("Open #%d error = %v", i+1, err)
		}
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if n != 1 {
			t.Errorf("schema_migrations rows = %d, want 1", n)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}
}

func TestMigrationFilenames(t *testing.T) {
	pending, err := pendingMigrations(map[string]bool{})
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	if len(pending) == 0 || pending[0].version != "0001" || pending[0].name != "schema" {
		t.Errorf("pending = %+v", pending)
	}
	if got, _ := pendingMigrations(map[string]bool{"0001": true}); len(got) != len(pending)-1 {
		t.Errorf("pending after 0001 applied = %d, want %d", len(got), len(pending)-1)
	}
}

func TestObservations(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		pressure := 1015.0
		first, err := s.SaveObservation(ctx, models.Observation{
			City:    "Kathmandu",
			Sys:     models.Sys{Country: "NP"},
			Weather: []models.Condition{{ID: 800, Main: "Clear", Description: "Clear Sky", Icon: "01d"}},
			Main:    models.MainReadings{Temp: 22, Pressure: &pressure, Humidity: 45},
		})
		if err != nil {
			t.Fatalf("SaveObservation() error = %v", err)
		}
		if first.ID == "" || first.CreatedAt.IsZero() {
			t.Errorf("SaveObservation() did not assign id/createdAt: %+v", first)
		}
		if _, err := s.SaveObservation(ctx, models.Observation{City: "Pokhara", Main: models.MainReadings{Temp: 18}}); err != nil {
			t.Fatalf("SaveObservation() error = %v", err)
		}

		list, err := s.ListObservations(ctx, 0)
		if err != nil {
			t.Fatalf("ListObservations() error = %v", err)
		}
		if len(list) != 2 || list[0].City != "Pokhara" || list[1].City != "Kathmandu" {
			t.Fatalf("ListObservations() order = %+v", list)
		}
		if list[1].Main.Pressure == nil || *list[1].Main.Pressure != 1015 {
			t.Errorf("pressure did not round-trip: %+v", list[1].Main)
		}

		got, err := s.LatestObservation(ctx, "kathmandu")
		if err != nil {
			t.Fatalf("LatestObservation(kathmandu) error = %v", err)
		}
		if got.ID != first.ID || got.PrimaryCondition().Icon != "01d" {
			t.Errorf("LatestObservation() = %+v", got)
		}
		if got, err := s.LatestObservation(ctx, ""); err != nil || got.City != "Pokhara" {
			t.Errorf("LatestObservation(\"\") = %q, %v", got.City, err)
		}
		if _, err := s.LatestObservation(ctx, "Lalitpur"); !errors.Is(err, ErrNotFound) {
			t.Errorf("LatestObservation(Lalitpur) err = %v, want ErrNotFound", err)
		}
		if limited, _ := s.ListObservations(ctx, 1); len(limited) != 1 {
			t.Errorf("ListObservations(1) len = %d", len(limited))
		}
	})
}

func TestObservations_SubSecondOrdering(t *testing.T) {
	base := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		older, newer time.Time
	}{
		{"trailing zero trimmed", base.Add(120 * time.Millisecond), base.Add(123 * time.Millisecond)},
		{"whole second before fraction", base, base.Add(500 * time.Millisecond)},
		{"fraction before next second", base.Add(999 * time.Millisecond), base.Add(time.Second)},
		{"nanosecond apart", base.Add(time.Nanosecond), base.Add(2 * time.Nanosecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachDriver(t, func(t *testing.T, s *Store) {
				ctx := context.Background()
				for _, o := range []models.Observation{
					{City: "Kathmandu", Country: "Older", CreatedAt: tt.older},
					{City: "Kathmandu", Country: "Newer", CreatedAt: tt.newer},
				} {
					if _, err := s.SaveObservation(ctx, o); err != nil {
						t.Fatalf("SaveObservation(%s) error = %v", o.Country, err)
					}
				}
				got, err := s.LatestObservation(ctx, "Kathmandu")
				if err != nil {
					t.Fatalf("LatestObservation() error = %v", err)
				}
				if got.Country != "Newer" {
					t.Errorf("LatestObservation() = %q, want Newer", got.Country)
				}
				list, err := s.ListObservations(ctx, 0)
				if err != nil {
					t.Fatalf("ListObservations() error = %v", err)
				}
				if len(list) != 2 || list[0].Country != "Newer" {
					t.Errorf("ListObservations()[0] = %+v, want Newer first", list)
				}
			})
		})
	}
}

func TestObservations_NewerSavedFirst(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		base := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
		if _, err := s.SaveObservation(ctx, models.Observation{City: "Pokhara", Country: "Newer", CreatedAt: base.Add(10 * time.Millisecond)}); err != nil {
			t.Fatalf("SaveObservation() error = %v", err)
		}
		if _, err := s.SaveObservation(ctx, models.Observation{City: "Pokhara", Country: "Older", CreatedAt: base.Add(9 * time.Millisecond)}); err != nil {
			t.Fatalf("SaveObservation() error = %v", err)
		}
		if got, err := s.LatestObservation(ctx, ""); err != nil || got.Country != "Newer" {
			t.Errorf("LatestObservation() = %q, %v; want Newer", got.Country, err)
		}
	})
}

func TestFormatTime_FixedWidth(t *testing.T) {
	base := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	want := len(formatTime(base))
	for _, d := range []time.Duration{time.Nanosecond, 120 * time.Millisecond, 123456789} {
		if got := formatTime(base.Add(d)); len(got) != want {
			t.Errorf("formatTime(+%v) = %q, width %d, want %d", d, got, len(got), want)
		}
	}
	if got := formatTime(base.In(time.FixedZone("NPT", 5*3600+45*60))); got != "2026-10-17T06:00:00.000000000Z" {
		t.Errorf("formatTime() = %q, want UTC", got)
	}
}

func TestLatestObservation_Empty(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		if _, err := s.LatestObservation(context.Background(), ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestForecast(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		day := func(city string, d int, temp float64) models.ForecastDay {
			return models.ForecastDay{
				City:        city,
				Date:        time.Date(2026, 10, 17+d, 15, 30, 0, 0, time.UTC),
				Temperature: temp,
				Weather:     "Sunny",
				Description: "Sunny",
				Icon:        "sun",
			}
		}
		for _, d := range []models.ForecastDay{day("Kathmandu", 2, 21), day("Kathmandu", 0, 23), day("Pokhara", 1, 19), day("Kathmandu", 1, 22)} {
			if _, err := s.SaveForecastDay(ctx, d); err != nil {
				t.Fatalf("SaveForecastDay() error = %v", err)
			}
		}

		got, err := s.ListForecast(ctx, "KATHMANDU", 7)
		if err != nil {
			t.Fatalf("ListForecast() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("ListForecast() len = %d, want 3", len(got))
		}
		for i, want := range []float64{23, 22, 21} {
			if got[i].Temperature != want {
				t.Errorf("day %d temperature = %v, want %v", i, got[i].Temperature, want)
			}
		}
		if got[0].Date.Hour() != 0 || got[0].Date.Day() != 17 {
			t.Errorf("date not truncated to day: %v", got[0].Date)
		}

		all, err := s.ListAllForecast(ctx, 0)
		if err != nil {
			t.Fatalf("ListAllForecast() error = %v", err)
		}
		if len(all) != 4 || all[1].City != "Pokhara" && all[2].City != "Pokhara" {
			t.Errorf("ListAllForecast() = %+v", all)
		}
	})
}

func TestLocations(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		ktm, err := s.CreateLocation(ctx, models.Location{Name: "Kathmandu", Lat: 27.7172, Lon: 85.3240, Region: "Bagmati"})
		if err != nil {
			t.Fatalf("CreateLocation() error = %v", err)
		}
		pkr, err := s.CreateLocation(ctx, models.Location{Name: "Pokhara", Lat: 28.2096, Lon: 83.9856})
		if err != nil {
			t.Fatalf("CreateLocation() error = %v", err)
		}
		if ktm.ID == "" || ktm.ID == pkr.ID {
			t.Fatalf("ids not unique: %q %q", ktm.ID, pkr.ID)
		}

		list, err := s.ListLocations(ctx)
		if err != nil || len(list) != 2 || list[0].Name != "Kathmandu" {
			t.Fatalf("ListLocations() = %+v, %v", list, err)
		}

		region := "Gandaki"
		updated, err := s.UpdateLocation(ctx, pkr.ID, models.LocationPatch{Region: &region}, nil)
		if err != nil {
			t.Fatalf("UpdateLocation() error = %v", err)
		}
		if updated.Region != "Gandaki" || updated.Name != "Pokhara" || updated.Lat != 28.2096 {
			t.Errorf("UpdateLocation() = %+v", updated)
		}
		if got, _ := s.GetLocation(ctx, pkr.ID); got.Region != "Gandaki" {
			t.Errorf("GetLocation() region = %q, want Gandaki", got.Region)
		}

		if err := s.DeleteLocation(ctx, ktm.ID); err != nil {
			t.Fatalf("DeleteLocation() error = %v", err)
		}
		if _, err := s.GetLocation(ctx, ktm.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetLocation(deleted) err = %v, want ErrNotFound", err)
		}
	})
}

func TestLocations_NotFound(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		name := "x"
		if _, err := s.UpdateLocation(ctx, "missing", models.LocationPatch{Name: &name}, nil); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateLocation err = %v, want ErrNotFound", err)
		}
		if err := s.DeleteLocation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteLocation err = %v, want ErrNotFound", err)
		}
	})
}

func TestUpdateLocation_CheckRejects(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		l, err := s.CreateLocation(ctx, models.Location{Name: "Paton", Lat: 27.671, Lon: 85.324})
		if err != nil {
			t.Fatalf("CreateLocation() error = %v", err)
		}
		errBad := errors.New("bad latitude")
		lat := 120.0
		_, err = s.UpdateLocation(ctx, l.ID, models.LocationPatch{Lat: &lat}, func(l models.Location) (models.Location, error) {
			if l.Lat > 90 {
				return l, errBad
			}
			return l, nil
		})
		if !errors.Is(err, errBad) {
			t.Fatalf("UpdateLocation err = %v, want %v", err, errBad)
		}
		got, _ := s.GetLocation(ctx, l.ID)
		if got.Lat != 27.671 {
			t.Errorf("rejected update was written: lat = %v", got.Lat)
		}
	})
}

func TestFail_WrapsOperation(t *testing.T) {
	err := fail("list locations", errors.New("database is locked"))
	if !strings.HasPrefix(err.Error(), "list locations: ") {
		t.Errorf("fail() = %q", err)
	}
}

func TestSaveSeed(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
		obs, days, err := s.SaveSeed(ctx,
			models.Observation{City: "Kathmandu", Main: models.MainReadings{Temp: 21}},
			[]models.ForecastDay{
				{City: "Kathmandu", Date: day, Temperature: 20, Weather: "Clear"},
				{City: "Kathmandu", Date: day.AddDate(0, 0, 1), Temperature: 19, Weather: "Rain"},
			})
		if err != nil {
			t.Fatalf("SaveSeed() error = %v", err)
		}
		if obs.ID == "" || len(days) != 2 || days[0].ID == "" {
			t.Fatalf("SaveSeed() = %+v, %+v", obs, days)
		}
		if got, err := s.LatestObservation(ctx, "Kathmandu"); err != nil || got.ID != obs.ID {
			t.Errorf("LatestObservation() = %q, %v; want %q", got.ID, err, obs.ID)
		}
		if got, _ := s.ListForecast(ctx, "Kathmandu", 0); len(got) != 2 {
			t.Errorf("ListForecast() len = %d, want 2", len(got))
		}
	})
}

func TestSaveSeed_FailureWritesNothing(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
		_, _, err := s.SaveSeed(ctx,
			models.Observation{City: "Pokhara", Main: models.MainReadings{Temp: 18}},
			[]models.ForecastDay{
				{ID: "dup", City: "Pokhara", Date: day, Temperature: 20},
				{ID: "dup", City: "Pokhara", Date: day.AddDate(0, 0, 1), Temperature: 19},
			})
		if err == nil {
			t.Fatal("SaveSeed() with duplicate forecast ids succeeded, want error")
		}
		if _, err := s.LatestObservation(ctx, "Pokhara"); !errors.Is(err, ErrNotFound) {
			t.Errorf("observation persisted after failed seed: err = %v", err)
		}
		if got, err := s.ListForecast(ctx, "Pokhara", 0); err != nil || len(got) != 0 {
			t.Errorf("forecast persisted after failed seed: %d rows, err = %v", len(got), err)
		}
	})
}
