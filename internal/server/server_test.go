package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/salusconnect/internal/salus"
)

// fakeThermostat records calls and returns canned results
type fakeThermostat struct {
	mu        sync.Mutex
	summaries []salus.DeviceSummary
	listErr   error
	state     salus.DeviceState
	stateErr  error
	status    int
	updateErr error

	listCalls   int
	stateIDs    []string
	updateCalls []float64
}

func (f *fakeThermostat) ListDevices(ctx context.Context) ([]salus.DeviceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.summaries, f.listErr
}

func (f *fakeThermostat) DeviceState(ctx context.Context, id string) (salus.DeviceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateIDs = append(f.stateIDs, id)
	if f.stateErr != nil {
		return salus.DeviceState{}, f.stateErr
	}
	state := f.state
	state.ID = id
	return state, nil
}

func (f *fakeThermostat) UpdateTemperature(ctx context.Context, id string, value float64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, value)
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	if err := salus.ValidateSetpoint(value); err != nil {
		return 0, err
	}
	return f.status, nil
}

// recordingPublisher captures Publish calls
type recordingPublisher struct {
	mu    sync.Mutex
	calls [][]salus.DeviceSummary
	err   error
}

func (p *recordingPublisher) Publish(summaries []salus.DeviceSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, summaries)
	return p.err
}

func twoDevices() []salus.DeviceSummary {
	return []salus.DeviceSummary{
		{ID: "10000001", Name: "Lounge", Current: 2150, Target: 2000, Humidity: 45, Heating: true},
		{ID: "10000003", Name: "Bedroom", Current: 1890, Target: 1600},
	}
}

func newTestServer(t *testing.T, fake *fakeThermostat, publishers ...Publisher) *Server {
	t.Helper()
	srv, err := New(Config{Listen: "127.0.0.1:0"}, fake, publishers...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func TestNew_RequiresThermostat(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestNew_TLSNeedsBothFiles(t *testing.T) {
	_, err := New(Config{CertPath: "cert.pem"}, &fakeThermostat{})
	if err == nil {
		t.Error("New() with only a cert path should fail")
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeThermostat{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestListDevicesRoute(t *testing.T) {
	fake := &fakeThermostat{summaries: twoDevices()}
	srv := newTestServer(t, fake)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got []salus.DeviceSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "10000001" || got[1].ID != "10000003" {
		t.Errorf("devices = %+v", got)
	}
}

func TestListDevicesRoute_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeThermostat{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func TestDeviceRoute(t *testing.T) {
	fake := &fakeThermostat{state: salus.DeviceState{DisplayName: "Lounge", Temperature: 2150, HeatingSetpoint: 2000, RunningMode: true}}
	srv := newTestServer(t, fake)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices/10000001", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got salus.DeviceState
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "10000001" || got.DisplayName != "Lounge" || !got.RunningMode {
		t.Errorf("state = %+v", got)
	}
}

func TestDeviceRoute_InvalidID(t *testing.T) {
	fake := &fakeThermostat{}
	srv := newTestServer(t, fake)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices/%20bad", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(fake.stateIDs) != 0 {
		t.Error("invalid id must not reach the client")
	}
}

func TestDeviceRoute_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", salus.NewHTTPError(404, "/apiv1/dsns/x/properties.json", "not found"), http.StatusNotFound},
		{"auth", salus.NewAuthError(401, "rejected"), http.StatusBadGateway},
		{"server error", salus.NewHTTPError(500, "/apiv1/devices.json", "boom"), http.StatusBadGateway},
		{"timeout", &salus.APIError{Type: salus.ErrTypeTimeout, Message: "slow"}, http.StatusGatewayTimeout},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeThermostat{stateErr: tt.err})
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices/10000001", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSetpointRoute(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		status    int
		wantCode  int
		wantValue float64
		wantBody  int
	}{
		{"celsius", `{"celsius":21.5}`, 200, http.StatusOK, 2150, 200},
		{"raw value", `{"value":1800}`, 201, http.StatusOK, 1800, 201},
		{"non-2xx passes through", `{"value":1800}`, 404, http.StatusOK, 1800, 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeThermostat{status: tt.status}
			srv := newTestServer(t, fake)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/devices/10000001/setpoint", strings.NewReader(tt.body))
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var resp SetpointResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("response status = %d, want %d", resp.Status, tt.wantBody)
			}
			if len(fake.updateCalls) != 1 || fake.updateCalls[0] != tt.wantValue {
				t.Errorf("UpdateTemperature calls = %v, want [%v]", fake.updateCalls, tt.wantValue)
			}
		})
	}
}

func TestSetpointRoute_BadRequests(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantUpdates int
	}{
		{"not json", `21.5`, 0},
		{"empty object", `{}`, 0},
		{"both fields", `{"value":2000,"celsius":20}`, 0},
		{"unknown field", `{"temp":20}`, 0},
		{"out of range", `{"value":0}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeThermostat{status: 200}
			srv := newTestServer(t, fake)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/devices/10000001/setpoint", strings.NewReader(tt.body))
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if len(fake.updateCalls) != tt.wantUpdates {
				t.Errorf("UpdateTemperature calls = %d, want %d", len(fake.updateCalls), tt.wantUpdates)
			}
			if !strings.Contains(rec.Body.String(), `"type":"validation_error"`) {
				t.Errorf("body should name the error type: %s", rec.Body.String())
			}
		})
	}
}

func TestSetpointRoute_WrongMethod(t *testing.T) {
	srv := newTestServer(t, &fakeThermostat{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices/10000001/setpoint", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// overlapDetector fails the test if two calls are ever in flight together
type overlapDetector struct {
	fakeThermostat
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (o *overlapDetector) ListDevices(ctx context.Context) ([]salus.DeviceSummary, error) {
	if o.inFlight.Add(1) > 1 {
		o.overlaps.Add(1)
	}
	defer o.inFlight.Add(-1)
	time.Sleep(time.Millisecond)
	return nil, nil
}

func TestSerialThermostat_NoOverlap(t *testing.T) {
	detector := &overlapDetector{}
	serial := Serialize(detector)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = serial.ListDevices(context.Background())
		}()
	}
	wg.Wait()

	if n := detector.overlaps.Load(); n != 0 {
		t.Errorf("%d overlapping calls reached the client", n)
	}
	if Serialize(serial) != serial {
		t.Error("Serialize should not double-wrap")
	}
}

func TestPoller_PublishesResults(t *testing.T) {
	fake := &fakeThermostat{summaries: twoDevices()}
	pub := &recordingPublisher{}
	srv := newTestServer(t, fake, pub)

	if !NewPoller(srv, time.Second).Poll(context.Background()) {
		t.Fatal("Poll() = false, want true")
	}
	if len(pub.calls) != 1 || len(pub.calls[0]) != 2 {
		t.Errorf("publisher calls = %v", pub.calls)
	}
	if latest := srv.Latest(); len(latest) != 2 || latest[0].Name != "Lounge" {
		t.Errorf("Latest() = %+v", latest)
	}
}

func TestPoller_ErrorKeepsLastResult(t *testing.T) {
	fake := &fakeThermostat{summaries: twoDevices()}
	pub := &recordingPublisher{}
	srv := newTestServer(t, fake, pub)
	poller := NewPoller(srv, time.Second)

	poller.Poll(context.Background())
	fake.listErr = salus.NewHTTPError(503, "/apiv1/devices.json", "unavailable")
	if poller.Poll(context.Background()) {
		t.Error("Poll() = true on error")
	}
	if len(pub.calls) != 1 {
		t.Errorf("failed poll should not publish, got %d calls", len(pub.calls))
	}
	if len(srv.Latest()) != 2 {
		t.Error("failed poll should keep the previous result")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	srv := newTestServer(t, &fakeThermostat{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/healthz"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("bridge never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
