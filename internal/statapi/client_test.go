package statapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eightyone/botdock/internal/reports"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(2523), req["church_id"])
		assert.Equal(t, "tester", req["account"])
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"token": "tok-123"}})
	})

	mux.HandleFunc("/api/church/member", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "2025", r.URL.Query().Get("year"))
		assert.Equal(t, "49", r.URL.Query().Get("week"))
		assert.Equal(t, "churchStructureTab", r.URL.Query().Get("filter_mode"))

		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"members": []map[string]any{
			{"member_name": "張三", "sex": "M", "lv3_name": "高中一區", "lv4_name": "一排",
				"attend0": 1, "attend4": 1, "attend6": 1},
			{"member_name": "李四", "sex": "F", "lv3_name": "高中二區"},
		}}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCurrentWeek(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, 2523, "tester", "secret", "2-1,2-2")

	now := time.Date(2025, time.December, 10, 12, 0, 0, 0, time.UTC)
	week, records, err := c.FetchCurrentWeek(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, "2025-12-07", week.SundayStr())
	require.Len(t, records, 2)

	assert.Equal(t, "張三", records[0].Name)
	assert.Equal(t, "高中一區", records[0].District)
	assert.Equal(t, "一排", records[0].Group)
	assert.Equal(t, 1, records[0].LordsDay)
	assert.Equal(t, 1, records[0].SmallGroup)
	assert.Equal(t, 1, records[0].GospelVisit)
	assert.Equal(t, 0, records[0].Prayer)

	// Absent categories decode as zero.
	assert.Equal(t, 0, records[1].Tally.Total())
}

func TestLoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2523, "tester", "wrong", "")
	_, err := c.Login(context.Background())
	require.Error(t, err)
}

func TestLoginNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2523, "tester", "secret", "")
	_, err := c.Login(context.Background())
	require.Error(t, err)
}

func TestFetchWeekUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, 2523, "tester", "secret", "")
	_, err := c.FetchWeek(context.Background(), "bad-token", reports.WeekOf(time.Now()))
	require.Error(t, err)
}
