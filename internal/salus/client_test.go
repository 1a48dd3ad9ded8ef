package salus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testToken = "tok-0123456789abcdef"

// recordedRequest is what the fake cloud saw for one request
type recordedRequest struct {
	Method        string
	Path          string
	Timestamp     string
	Authorization string
	ContentType   string
	Body          string
}

// fakeCloud mimics the Salus Connect endpoints used by the client
type fakeCloud struct {
	mu       sync.Mutex
	requests []recordedRequest

	signInStatus   int
	signInBody     string
	devicesBody    string
	properties     map[string]string
	propertyStatus map[string]int
	setpointStatus int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		signInStatus:   http.StatusOK,
		signInBody:     `{"access_token":"` + testToken + `","refresh_token":"r","expires_in":86400,"role":"EndUser"}`,
		devicesBody:    `[]`,
		properties:     map[string]string{},
		propertyStatus: map[string]int{},
		setpointStatus: http.StatusCreated,
	}
}

func (f *fakeCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Timestamp:     r.URL.Query().Get("timestamp"),
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          string(body),
	})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == signInPath && r.Method == http.MethodPost:
		w.WriteHeader(f.signInStatus)
		_, _ = w.Write([]byte(f.signInBody))

	case r.URL.Path == devicesPath && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(f.devicesBody))

	case strings.HasSuffix(r.URL.Path, "/properties.json") && r.Method == http.MethodGet:
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/apiv1/dsns/"), "/properties.json")
		if status, ok := f.propertyStatus[id]; ok {
			w.WriteHeader(status)
			return
		}
		props, ok := f.properties[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(props))

	case strings.HasSuffix(r.URL.Path, "/datapoints.json") && r.Method == http.MethodPost:
		w.WriteHeader(f.setpointStatus)
		_, _ = w.Write([]byte(`{"datapoint":{}}`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeCloud) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeCloud) count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, cloud *fakeCloud, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(cloud)
	t.Cleanup(server.Close)

	opts = append([]Option{WithBaseURL(server.URL)}, opts...)
	client, err := NewClient(Credentials{Username: "me@example.com", Password: "s3cret"}, opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// tickingClock returns a clock that advances by step on every call
func tickingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(Credentials{Username: "me@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", client.BaseURL(), DefaultBaseURL)
	}
	if client.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
	}
	if client.acceptedModel != AcceptedModel {
		t.Errorf("acceptedModel = %s, want %s", client.acceptedModel, AcceptedModel)
	}
	if client.Session().Valid() {
		t.Error("new client should not hold a session")
	}
}

func TestNewClient_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty username", Credentials{Password: "pw"}},
		{"blank username", Credentials{Username: "  ", Password: "pw"}},
		{"empty password", Credentials{Username: "me@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.creds)
			if !IsValidationError(err) {
				t.Errorf("NewClient() error = %v, want validation error", err)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	client, err := NewClient(Credentials{Username: "u", Password: "p"},
		WithBaseURL("https://example.test/"),
		WithTimeout(5*time.Second),
		WithAcceptedModel("SQ999"),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.BaseURL() != "https://example.test" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", client.BaseURL())
	}
	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
	}
	if client.acceptedModel != "SQ999" {
		t.Errorf("acceptedModel = %s, want SQ999", client.acceptedModel)
	}
}

func TestClientOptions_TimeoutAndHTTPClient(t *testing.T) {
	transport := &http.Transport{}
	tests := []struct {
		name        string
		callerLimit time.Duration
		opts        func(hc *http.Client) []Option
		custom      bool
		want        time.Duration
	}{
		{"timeout then client", 0, func(hc *http.Client) []Option {
			return []Option{WithTimeout(5 * time.Second), WithHTTPClient(hc)}
		}, true, 5 * time.Second},
		{"client then timeout", 0, func(hc *http.Client) []Option {
			return []Option{WithHTTPClient(hc), WithTimeout(5 * time.Second)}
		}, true, 5 * time.Second},
		{"client keeps its own limit", 7 * time.Second, func(hc *http.Client) []Option {
			return []Option{WithHTTPClient(hc)}
		}, true, 7 * time.Second},
		{"unbounded client gets the default", 0, func(hc *http.Client) []Option {
			return []Option{WithHTTPClient(hc)}
		}, true, DefaultTimeout},
		{"zero timeout is ignored", 0, func(hc *http.Client) []Option {
			return []Option{WithTimeout(0)}
		}, false, DefaultTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := &http.Client{Transport: transport, Timeout: tt.callerLimit}
			client, err := NewClient(Credentials{Username: "u", Password: "p"}, tt.opts(hc)...)
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			if client.httpClient.Timeout != tt.want {
				t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, tt.want)
			}
			if hc.Timeout != tt.callerLimit {
				t.Errorf("caller's client Timeout changed to %v", hc.Timeout)
			}
			if tt.custom && client.httpClient.Transport != transport {
				t.Error("WithHTTPClient transport was not kept")
			}
		})
	}
}

func TestRequestsCarryTimestampAndAccept(t *testing.T) {
	cloud := newFakeCloud()
	start := time.UnixMilli(1700000000000)
	client := newTestClient(t, cloud, WithClock(func() time.Time { return start }))

	if _, err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	reqs := cloud.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	if reqs[0].Timestamp != "1700000000000" {
		t.Errorf("timestamp = %q, want 1700000000000", reqs[0].Timestamp)
	}
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client, _ := NewClient(Credentials{Username: "u", Password: "p"}, WithBaseURL(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Login(ctx)
	if !IsNetworkError(err) {
		t.Fatalf("Login() error = %v, want network error", err)
	}
	if !IsRetryable(err) {
		t.Error("deadline exceeded should be retryable")
	}
}

func TestSessionReuse(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devicesBody = `[{"device":{"dsn":"A","product_name":"Hall","oem_model":"SQ610"}}]`
	cloud.properties["A"] = `[]`

	clock := tickingClock(time.Unix(1700000000, 0), time.Second)
	client := newTestClient(t, cloud, WithClock(clock), WithSessionReuse(time.Hour))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.ListDevices(ctx); err != nil {
			t.Fatalf("ListDevices() error = %v", err)
		}
	}
	if _, err := client.UpdateTemperature(ctx, "A", 2000); err != nil {
		t.Fatalf("UpdateTemperature() error = %v", err)
	}

	if n := cloud.count(http.MethodPost, signInPath); n != 1 {
		t.Errorf("sign-ins = %d, want 1 with session reuse", n)
	}

	client.InvalidateSession()
	if _, err := client.ListDevices(ctx); err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if n := cloud.count(http.MethodPost, signInPath); n != 2 {
		t.Errorf("sign-ins = %d, want 2 after InvalidateSession", n)
	}
}

func TestSessionReuse_Expires(t *testing.T) {
	cloud := newFakeCloud()
	clock := tickingClock(time.Unix(1700000000, 0), time.Minute)
	client := newTestClient(t, cloud, WithClock(clock), WithSessionReuse(90*time.Second))
	ctx := context.Background()

	// Each clock read advances a minute, so the session ages past the TTL
	for i := 0; i < 3; i++ {
		if _, err := client.ListDevices(ctx); err != nil {
			t.Fatalf("ListDevices() error = %v", err)
		}
	}

	if n := cloud.count(http.MethodPost, signInPath); n < 2 {
		t.Errorf("sign-ins = %d, want a new sign-in after the session aged out", n)
	}
}

func TestUnauthorizedDropsSession(t *testing.T) {
	cloud := newFakeCloud()
	cloud.propertyStatus["A"] = http.StatusUnauthorized
	client := newTestClient(t, cloud, WithSessionReuse(time.Hour))
	ctx := context.Background()

	if _, err := client.Login(ctx); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	_, err := client.DeviceState(ctx, "A")
	if !IsAuthError(err) {
		t.Fatalf("DeviceState() error = %v, want auth error", err)
	}
	if client.Session().Valid() {
		t.Error("session should be dropped after 401")
	}
}

func TestBearerTokenAttached(t *testing.T) {
	cloud := newFakeCloud()
	client := newTestClient(t, cloud)

	if _, err := client.ListDevices(context.Background()); err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	for _, r := range cloud.Requests() {
		if r.Path == devicesPath && r.Authorization != "Bearer "+testToken {
			t.Errorf("Authorization = %q, want Bearer %s", r.Authorization, testToken)
		}
		if r.Path == signInPath && r.Authorization != "" {
			t.Errorf("sign-in carried Authorization header %q", r.Authorization)
		}
	}
}

// decodeBody unmarshals a recorded JSON request body
func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("request body is not JSON: %v (%s)", err, body)
	}
	return out
}
