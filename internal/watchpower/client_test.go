package watchpower

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

var pkt = time.FixedZone("PKT", 5*60*60)

// fakeShine mimics the signed ShineMonitor endpoint.
type fakeShine struct {
	t *testing.T

	mu         sync.Mutex
	logins     int
	token      string
	loginErr   int
	rejectData int
	queries    []string
	days       map[string][][]string
}

func newFakeShine(t *testing.T) (*fakeShine, *httptest.Server) {
	f := &fakeShine{t: t, days: map[string][][]string{}}
	ts := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(ts.Close)
	return f, ts
}

func (f *fakeShine) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw := r.URL.RawQuery
	i := strings.Index(raw, "&action=")
	if !assert.GreaterOrEqual(f.t, i, 0, "action missing from %s", raw) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	action := raw[i:]
	q := r.URL.Query()

	switch q.Get("action") {
	case "authSource":
		assert.Equal(f.t, sha1Hex(q.Get("salt")+sha1Hex("pw")+action), q.Get("sign"))
		assert.Equal(f.t, "owner", q.Get("usr"))
		assert.Equal(f.t, DefaultCompanyKey, q.Get("company-key"))
		if f.loginErr != 0 {
			writeJSON(w, map[string]any{"err": f.loginErr, "desc": "ERR_USER_NOT_FOUND"})
			return
		}
		f.logins++
		f.token = fmt.Sprintf("tok-%d", f.logins)
		writeJSON(w, map[string]any{"err": 0, "desc": "ERR_NONE", "dat": map[string]any{
			"secret": "sec", "token": f.token, "expire": 3600,
		}})

	case "queryDeviceDataOneDayPaging":
		assert.Equal(f.t, sha1Hex(q.Get("salt")+"sec"+q.Get("token")+action), q.Get("sign"))
		f.queries = append(f.queries, q.Get("date")+"/"+q.Get("page"))
		if f.rejectData > 0 || q.Get("token") != f.token {
			if f.rejectData > 0 {
				f.rejectData--
			}
			writeJSON(w, map[string]any{"err": 3, "desc": "ERR_TOKEN_INVALID"})
			return
		}
		rows := f.days[q.Get("date")]
		if len(rows) == 0 {
			writeJSON(w, map[string]any{"err": 12, "desc": "ERR_NO_RECORD"})
			return
		}
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("pagesize"))
		start, end := page*size, (page+1)*size
		if start > len(rows) {
			start = len(rows)
		}
		if end > len(rows) {
			end = len(rows)
		}
		out := []map[string]any{}
		for _, row := range rows[start:end] {
			out = append(out, map[string]any{"field": row})
		}
		writeJSON(w, map[string]any{"err": 0, "desc": "ERR_NONE", "dat": map[string]any{
			"total": len(rows), "page": page, "pagesize": size, "row": out,
		}})

	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// row builds a full-width row with the fields the layout reads.
func row(ts string, set map[int]string) []string {
	fields := make([]string, 48)
	fields[1] = ts
	for i, v := range set {
		fields[i] = v
	}
	return fields
}

func newTestClient(ts *httptest.Server, now *time.Time) *Client {
	c := New(Config{
		BaseURL:      ts.URL,
		Username:     "owner",
		Password:     "pw",
		SerialNumber: "W0034053928283",
		WifiPN:       "W0034053928283",
		DevCode:      2451,
		DevAddr:      1,
		Location:     pkt,
	})
	c.client = ts.Client()
	c.now = func() time.Time { return *now }
	return c
}

func TestFetchDailySamplesPaginates(t *testing.T) {
	f, ts := newFakeShine(t)
	start := time.Date(2025, 9, 14, 0, 0, 0, 0, pkt)
	var rows [][]string
	for i := 0; i < 250; i++ {
		stamp := start.Add(time.Duration(i) * 5 * time.Minute).Format(timestampLayout)
		rows = append(rows, row(stamp, map[int]string{11: "1200", 21: "600", 47: "Line Mode"}))
	}
	rows[10] = rows[10][:12]
	f.days["2025-09-14"] = rows

	now := time.Date(2025, 9, 15, 9, 0, 0, 0, pkt)
	c := newTestClient(ts, &now)

	samples, err := c.FetchDailySamples(context.Background(), "2025-09-14")
	require.NoError(t, err)
	assert.Len(t, samples, 249, "short row is dropped")
	assert.Equal(t, []string{"2025-09-14/0", "2025-09-14/1"}, f.queries)
	assert.Equal(t, 1, f.logins)

	first := samples[0]
	assert.True(t, first.Timestamp.Equal(start))
	assert.Equal(t, 1200.0, first.PVPower)
	assert.Equal(t, 600.0, first.LoadPower)
	assert.Equal(t, model.ModeLine, first.Mode)
}

func TestFetchDailySamplesRejectsBadDate(t *testing.T) {
	f, ts := newFakeShine(t)
	now := time.Now()
	_, err := newTestClient(ts, &now).FetchDailySamples(context.Background(), "14/09/2025")
	assert.ErrorContains(t, err, "invalid date")
	assert.Empty(t, f.queries)
}

func TestFetchDailySamplesNoRecord(t *testing.T) {
	_, ts := newFakeShine(t)
	now := time.Date(2025, 9, 15, 9, 0, 0, 0, pkt)
	samples, err := newTestClient(ts, &now).FetchDailySamples(context.Background(), "2025-09-14")
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestFetchCurrentReadingUsesLatestRow(t *testing.T) {
	f, ts := newFakeShine(t)
	f.days["2025-09-15"] = [][]string{
		row("2025-09-15 09:05:00", map[int]string{6: "0", 8: "221.4", 11: "900", 21: "450", 38: "Solar Utility Bat", 46: "120", 47: "Line Mode"}),
		row("2025-09-15 08:55:00", map[int]string{6: "230", 38: "Utility Solar Bat", 47: "Battery Mode"}),
	}
	now := time.Date(2025, 9, 15, 9, 7, 0, 0, pkt)

	r, err := newTestClient(ts, &now).FetchCurrentReading(context.Background())
	require.NoError(t, err)
	assert.True(t, r.FetchSucceeded)
	assert.True(t, r.Timestamp.Equal(time.Date(2025, 9, 15, 9, 5, 0, 0, pkt)))
	assert.Equal(t, "Solar Utility Bat", r.OutputPriority)
	assert.Equal(t, model.ModeLine, r.SystemMode)
	assert.Equal(t, 221.4, r.GridVoltage, "generator voltage stands in for a zero utility voltage")
	assert.Equal(t, 900.0, r.PV1Power)
	assert.Equal(t, 450.0, r.LoadPower)
	assert.Equal(t, 120.0, r.SolarFeedPower)
	assert.True(t, r.SolarFeedKnown)
}

func TestFetchCurrentReadingTruncatedRowLeavesFeedUnknown(t *testing.T) {
	f, ts := newFakeShine(t)
	full := row("2025-09-15 10:00:00", map[int]string{6: "231", 11: "1800", 38: "Solar Utility Bat"})
	f.days["2025-09-15"] = [][]string{full[:40]}
	now := time.Date(2025, 9, 15, 10, 2, 0, 0, pkt)

	r, err := newTestClient(ts, &now).FetchCurrentReading(context.Background())
	require.NoError(t, err)
	assert.True(t, r.FetchSucceeded)
	assert.Equal(t, "Solar Utility Bat", r.OutputPriority)
	assert.Equal(t, 231.0, r.GridVoltage)
	assert.Equal(t, 1800.0, r.PVPower())
	assert.False(t, r.SolarFeedKnown)
	assert.Equal(t, 0.0, r.SolarFeedPower)
}

func TestFetchCurrentReadingFallsBackToYesterday(t *testing.T) {
	f, ts := newFakeShine(t)
	f.days["2025-09-14"] = [][]string{
		row("2025-09-14 23:58:00", map[int]string{6: "228", 38: "Solar Utility Bat", 47: "Line Mode"}),
	}
	now := time.Date(2025, 9, 15, 0, 2, 0, 0, pkt)

	r, err := newTestClient(ts, &now).FetchCurrentReading(context.Background())
	require.NoError(t, err)
	assert.True(t, r.FetchSucceeded)
	assert.Equal(t, 228.0, r.GridVoltage)
	assert.Equal(t, []string{"2025-09-15/0", "2025-09-14/0"}, f.queries)
}

func TestFetchCurrentReadingNoRowsIsFailedReading(t *testing.T) {
	_, ts := newFakeShine(t)
	now := time.Date(2025, 9, 15, 0, 2, 0, 0, pkt)

	r, err := newTestClient(ts, &now).FetchCurrentReading(context.Background())
	require.NoError(t, err)
	assert.False(t, r.FetchSucceeded)
	assert.Equal(t, model.PriorityUnknown, r.OutputPriority)
	assert.Equal(t, model.ModeUnknown, r.SystemMode)
}

func TestTokenRefreshedOnRejection(t *testing.T) {
	f, ts := newFakeShine(t)
	f.days["2025-09-15"] = [][]string{row("2025-09-15 09:00:00", map[int]string{6: "230"})}
	f.rejectData = 1
	now := time.Date(2025, 9, 15, 9, 2, 0, 0, pkt)

	r, err := newTestClient(ts, &now).FetchCurrentReading(context.Background())
	require.NoError(t, err)
	assert.True(t, r.FetchSucceeded)
	assert.Equal(t, 2, f.logins)
}

func TestRejectedTwiceReturnsAPIError(t *testing.T) {
	f, ts := newFakeShine(t)
	f.rejectData = 5
	now := time.Date(2025, 9, 15, 9, 2, 0, 0, pkt)

	r, err := newTestClient(ts, &now).FetchCurrentReading(context.Background())
	require.Error(t, err)
	assert.False(t, r.FetchSucceeded)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 3, apiErr.Code)
	assert.Equal(t, 2, f.logins, "exactly one refresh")
}

func TestExpiredTokenTriggersLogin(t *testing.T) {
	f, ts := newFakeShine(t)
	f.days["2025-09-15"] = [][]string{row("2025-09-15 09:00:00", map[int]string{6: "230"})}
	now := time.Date(2025, 9, 15, 9, 2, 0, 0, pkt)
	c := newTestClient(ts, &now)

	_, err := c.FetchCurrentReading(context.Background())
	require.NoError(t, err)
	_, err = c.FetchCurrentReading(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.logins, "cached token reused")

	now = now.Add(2 * time.Hour)
	_, err = c.FetchCurrentReading(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.logins)
}

func TestLoginFailure(t *testing.T) {
	f, ts := newFakeShine(t)
	f.loginErr = 1
	now := time.Date(2025, 9, 15, 9, 2, 0, 0, pkt)

	_, err := newTestClient(ts, &now).FetchCurrentReading(context.Background())
	assert.ErrorContains(t, err, "login")
	assert.Empty(t, f.queries)
}

func TestHTTPErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	now := time.Now()

	_, err := newTestClient(ts, &now).FetchDailySamples(context.Background(), "2025-09-14")
	assert.ErrorContains(t, err, "unexpected status 503")
}

func TestLayoutHandlesShortRowsAndPV2(t *testing.T) {
	layout := DefaultLayout()
	layout.PV2Power = 12

	full := make([]cell, 48)
	full[1] = "2025-09-14 12:00:00"
	full[11] = "700"
	full[12] = "300.5"
	full[21] = "800"

	s, ok := layout.Sample(full, pkt)
	require.True(t, ok)
	assert.Equal(t, 1000.5, s.PVPower)
	assert.Equal(t, model.SystemMode(""), s.Mode)

	short := full[:20]
	_, ok = layout.Sample(short, pkt)
	assert.False(t, ok)

	now := time.Date(2025, 9, 14, 12, 1, 0, 0, pkt)
	r := layout.Reading(short, pkt, now)
	assert.True(t, r.FetchSucceeded)
	assert.Equal(t, model.PriorityUnknown, r.OutputPriority)
	assert.Equal(t, model.ModeUnknown, r.SystemMode)
	assert.Equal(t, 0.0, r.SolarFeedPower)
	assert.False(t, r.SolarFeedKnown)
	assert.Equal(t, 1000.5, r.PVPower())

	undated := make([]cell, 48)
	_, ok = layout.Sample(undated, pkt)
	assert.False(t, ok)
}

func TestCellAcceptsBareValues(t *testing.T) {
	var fields []cell
	require.NoError(t, json.Unmarshal([]byte(`["2025-09-14 00:02:18", 231.5, null, "Line Mode"]`), &fields))
	assert.Equal(t, []cell{"2025-09-14 00:02:18", "231.5", "", "Line Mode"}, fields)
}
