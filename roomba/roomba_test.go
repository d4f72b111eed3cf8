package roomba

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cloudkucooland/roombabridge/capability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVacuum serves the vacuum's REST API and counts hits per path
type fakeVacuum struct {
	mu     sync.Mutex
	hits   map[string]int
	status string
	reply  string
}

func newFakeVacuum(t *testing.T, status string) (*httptest.Server, *fakeVacuum) {
	t.Helper()
	f := &fakeVacuum{hits: make(map[string]int), status: status, reply: `{"ok":true}`}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		status, reply := f.status, f.reply
		f.mu.Unlock()

		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/start", "/dock":
			_, _ = io.WriteString(w, reply)
		case "/status":
			_, _ = io.WriteString(w, status)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, f
}

func (f *fakeVacuum) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeVacuum) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.hits {
		n += v
	}
	return n
}

func newTestAdapter(t *testing.T, address string, opts ...Option) (*Adapter, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(Config{Name: t.Name(), Address: address, Model: "Roomba 876"}, logger, opts...), hook
}

func TestNewLogsInitialisation(t *testing.T) {
	logger, hook := test.NewNullLogger()
	New(Config{Name: "Kitchen", Address: "not a url", Model: "876"}, logger)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "Kitchen", entry.Data["name"])
	assert.Equal(t, "not a url", entry.Data["address"])
	assert.Equal(t, "876", entry.Data["model"])
}

func TestSetPowerStateRouting(t *testing.T) {
	for _, on := range []bool{true, false} {
		srv, f := newFakeVacuum(t, `{}`)
		a, _ := newTestAdapter(t, srv.URL)

		require.NoError(t, a.SetPowerState(context.Background(), on))
		if on {
			assert.Equal(t, 1, f.count("/start"))
			assert.Equal(t, 0, f.count("/dock"))
		} else {
			assert.Equal(t, 0, f.count("/start"))
			assert.Equal(t, 1, f.count("/dock"))
		}
		assert.Equal(t, 0, f.count("/status"))
	}
}

func TestSetPowerStateNonJSONReply(t *testing.T) {
	srv, f := newFakeVacuum(t, `{}`)
	f.reply = `started!`
	a, hook := newTestAdapter(t, srv.URL)

	err := a.SetPowerState(context.Background(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, 1, f.count("/start"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "start", entry.Data["op"])
}

func TestPowerState(t *testing.T) {
	cases := []struct {
		body string
		want bool
	}{
		{`{"status":"run"}`, true},
		{`{"status":"stop"}`, false},
		{`{"status":"charge"}`, false},
		{`{"status":"RUN"}`, false},
		{`{"status":""}`, false},
		{`{}`, false},
	}
	for _, tc := range cases {
		srv, _ := newFakeVacuum(t, tc.body)
		a, _ := newTestAdapter(t, srv.URL)

		on, err := a.PowerState(context.Background())
		require.NoError(t, err, tc.body)
		assert.Equal(t, tc.want, on, tc.body)
	}
}

func TestChargingState(t *testing.T) {
	cases := []struct {
		body string
		want ChargingState
	}{
		{`{"is_charging":true}`, Charging},
		{`{"is_charging":false}`, NotCharging},
		{`{"status":"run"}`, NotCharging},
	}
	for _, tc := range cases {
		srv, _ := newFakeVacuum(t, tc.body)
		a, _ := newTestAdapter(t, srv.URL)

		state, err := a.ChargingState(context.Background())
		require.NoError(t, err, tc.body)
		assert.Equal(t, tc.want, state, tc.body)
	}
}

func TestBatteryLevelUnchanged(t *testing.T) {
	for body, want := range map[string]float64{
		`{"battery_level": 87.5}`: 87.5,
		`{"battery_level": 0}`:    0,
		`{"battery_level": 140}`:  140,
		`{"battery_level": -3}`:   -3,
	} {
		srv, _ := newFakeVacuum(t, body)
		a, _ := newTestAdapter(t, srv.URL)

		level, err := a.BatteryLevel(context.Background())
		require.NoError(t, err, body)
		assert.Equal(t, want, level, body)
	}
}

func TestIdentifyMakesNoRequests(t *testing.T) {
	srv, f := newFakeVacuum(t, `{}`)
	a, hook := newTestAdapter(t, srv.URL)

	require.NoError(t, a.Identify(context.Background()))
	assert.Equal(t, 0, f.total())
	assert.Equal(t, "identify", hook.LastEntry().Data["op"])
}

func TestStatusScenario(t *testing.T) {
	srv, f := newFakeVacuum(t, `{"status":"run","is_charging":false,"battery_level":42}`)
	a, _ := newTestAdapter(t, srv.URL)
	ctx := context.Background()

	on, err := a.PowerState(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	state, err := a.ChargingState(ctx)
	require.NoError(t, err)
	assert.Equal(t, NotCharging, state)
	assert.Equal(t, "NOT_CHARGING", state.String())

	level, err := a.BatteryLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42.0, level)

	// every read goes to the device
	assert.Equal(t, 3, f.count("/status"))

	assert.Equal(t, 42.0, testutil.ToFloat64(batteryLevel.WithLabelValues(t.Name())))
	assert.Equal(t, 1.0, testutil.ToFloat64(running.WithLabelValues(t.Name())))
	assert.Equal(t, 0.0, testutil.ToFloat64(charging.WithLabelValues(t.Name())))
	assert.Equal(t, 1.0, testutil.ToFloat64(requestsTotal.WithLabelValues(t.Name(), "battery", "ok")))
}

func TestStatusTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	a, hook := newTestAdapter(t, srv.URL, WithTimeout(50*time.Millisecond))
	ctx := context.Background()

	on, err := a.PowerState(ctx)
	assert.ErrorIs(t, err, ErrRequest)
	assert.False(t, on)

	state, err := a.ChargingState(ctx)
	assert.ErrorIs(t, err, ErrRequest)
	assert.Equal(t, NotCharging, state)

	level, err := a.BatteryLevel(ctx)
	assert.ErrorIs(t, err, ErrRequest)
	assert.Zero(t, level)

	var failures int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			failures++
			assert.Equal(t, "/status", e.Data["path"])
			assert.NotNil(t, e.Data[logrus.ErrorKey])
		}
	}
	assert.Equal(t, 3, failures)
	assert.Equal(t, 1.0, testutil.ToFloat64(requestsTotal.WithLabelValues(t.Name(), "power", "error")))
}

func TestContextCancel(t *testing.T) {
	srv, f := newFakeVacuum(t, `{"status":"run"}`)
	a, _ := newTestAdapter(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.PowerState(ctx)
	assert.ErrorIs(t, err, ErrRequest)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, f.total())
}

func TestFailuresDoNotPoisonAdapter(t *testing.T) {
	srv, f := newFakeVacuum(t, `<html>oops</html>`)
	a, _ := newTestAdapter(t, srv.URL)
	ctx := context.Background()

	_, err := a.PowerState(ctx)
	assert.ErrorIs(t, err, ErrDecode)

	f.mu.Lock()
	f.status = `{"status":"run"}`
	f.mu.Unlock()

	on, err := a.PowerState(ctx)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestMalformedFieldTypes(t *testing.T) {
	srv, _ := newFakeVacuum(t, `{"status":5,"battery_level":"full"}`)
	a, _ := newTestAdapter(t, srv.URL)

	_, err := a.BatteryLevel(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNullStatus(t *testing.T) {
	srv, _ := newFakeVacuum(t, `null`)
	a, hook := newTestAdapter(t, srv.URL)

	_, err := a.PowerState(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
	_, err = a.ChargingState(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
	_, err = a.BatteryLevel(context.Background())
	assert.ErrorIs(t, err, ErrDecode)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestRequestFailures(t *testing.T) {
	// nothing listens on a closed server
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a, _ := newTestAdapter(t, url)
	assert.ErrorIs(t, a.SetPowerState(context.Background(), false), ErrRequest)

	bad, _ := newTestAdapter(t, "::not a url::")
	_, err := bad.PowerState(context.Background())
	assert.ErrorIs(t, err, ErrRequest)

	missing := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(missing.Close)
	a404, _ := newTestAdapter(t, missing.URL)
	_, err = a404.BatteryLevel(context.Background())
	assert.ErrorIs(t, err, ErrRequest)
}

func TestTrailingSlashAddress(t *testing.T) {
	srv, f := newFakeVacuum(t, `{}`)
	a, _ := newTestAdapter(t, srv.URL+"/")

	require.NoError(t, a.SetPowerState(context.Background(), true))
	assert.Equal(t, 1, f.count("/start"))
}

func TestOptions(t *testing.T) {
	custom := &http.Client{Timeout: time.Minute}
	a := New(Config{}, nil, WithHTTPClient(custom), WithTimeout(time.Second), WithTimeout(0))
	assert.Equal(t, time.Second, a.client.Timeout)
	// the caller's client is not modified
	assert.Equal(t, time.Minute, custom.Timeout)

	d := New(Config{}, nil, WithHTTPClient(nil))
	assert.Equal(t, DefaultTimeout, d.client.Timeout)
}

func TestCapabilities(t *testing.T) {
	srv, f := newFakeVacuum(t, `{"status":"run","is_charging":true,"battery_level":64}`)
	a, _ := newTestAdapter(t, srv.URL)
	a.cfg.Name = "Kitchen"

	caps := a.Capabilities()
	require.Len(t, caps, 3)
	assert.Equal(t, capability.KindInfo, caps[0].Kind())
	assert.Equal(t, capability.KindBattery, caps[1].Kind())
	assert.Equal(t, capability.KindSwitch, caps[2].Kind())
	assert.Equal(t, 0, f.total())

	info := caps[0].(capability.Info)
	assert.Equal(t, "iRobot", info.Manufacturer)
	assert.Equal(t, "MY-AWESOME-ROOMBA-876", info.SerialNumber)
	assert.Equal(t, "Roomba 876", info.Model)
	assert.Equal(t, "Kitchen", info.Name)
	assert.False(t, info.Identifiable)
	require.NotNil(t, info.Identify)
	assert.NoError(t, info.Identify(context.Background()))

	ctx := context.Background()
	battery := caps[1].(capability.Battery)
	level, err := battery.Level(ctx)
	require.NoError(t, err)
	assert.Equal(t, 64.0, level)
	state, err := battery.Charging(ctx)
	require.NoError(t, err)
	assert.Equal(t, Charging, state)

	sw := caps[2].(capability.Switch)
	assert.Equal(t, "Kitchen", sw.Name)
	on, err := sw.Get(ctx)
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, sw.Set(ctx, false))
	assert.Equal(t, 1, f.count("/dock"))
}
