package salus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func setpointProperties(target int) string {
	return strings.Replace(loungeProperties(), `"value":2000`, `"value":`+strconv.Itoa(target), 1)
}

// lagCloud serves the old setpoint for the first lag property reads
type lagCloud struct {
	*fakeCloud
	lag   int
	reads int
	after string
}

func (c *lagCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/properties.json") {
		c.reads++
		if c.reads > c.lag {
			c.properties["10000001"] = c.after
		}
	}
	c.fakeCloud.ServeHTTP(w, r)
}

func newLagClient(t *testing.T, cloud *lagCloud) *Client {
	t.Helper()
	server := httptest.NewServer(cloud)
	t.Cleanup(server.Close)
	client, err := NewClient(Credentials{Username: "me@example.com", Password: "s3cret"}, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func fastVerification(retries int) *VerificationOptions {
	return &VerificationOptions{
		MaxRetries:    retries,
		InitialDelay:  time.Millisecond,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 2 * time.Millisecond,
	}
}

func TestVerifySetpoint_EventuallyMatches(t *testing.T) {
	cloud := &lagCloud{fakeCloud: newFakeCloud(), lag: 2, after: setpointProperties(2150)}
	cloud.properties["10000001"] = loungeProperties()
	client := newLagClient(t, cloud)

	result := client.VerifySetpoint(context.Background(), "10000001", 2150, fastVerification(3))
	if !result.Success {
		t.Fatalf("VerifySetpoint() failed: %v", result.Error)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if result.Actual == nil || result.Actual.HeatingSetpoint != 2150 {
		t.Errorf("Actual = %+v", result.Actual)
	}
	if result.Error != nil {
		t.Errorf("Error should be cleared on success, got %v", result.Error)
	}
}

func TestVerifySetpoint_GivesUp(t *testing.T) {
	cloud := newFakeCloud()
	cloud.properties["10000001"] = loungeProperties()
	client := newTestClient(t, cloud)

	result := client.VerifySetpoint(context.Background(), "10000001", 2150, fastVerification(2))
	if result.Success {
		t.Fatal("VerifySetpoint() should fail when the setpoint never changes")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if result.Error == nil || !strings.Contains(result.Error.Error(), "20.00°C") {
		t.Errorf("Error = %v, want mismatch naming the current setpoint", result.Error)
	}
}

func TestVerifySetpoint_ReadErrorsAreRetried(t *testing.T) {
	cloud := newFakeCloud()
	client := newTestClient(t, cloud)

	result := client.VerifySetpoint(context.Background(), "10000001", 2150, fastVerification(1))
	if result.Success || result.Attempts != 2 {
		t.Errorf("Success = %v, Attempts = %d", result.Success, result.Attempts)
	}
	if !IsHTTPError(result.Error) {
		t.Errorf("Error = %v, want the last read error", result.Error)
	}
}

func TestVerifySetpoint_Cancelled(t *testing.T) {
	client := newTestClient(t, newFakeCloud())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := client.VerifySetpoint(ctx, "10000001", 2150, &VerificationOptions{InitialDelay: time.Hour})
	if result.Success || result.Attempts != 0 {
		t.Errorf("Success = %v, Attempts = %d", result.Success, result.Attempts)
	}
	if result.Error != context.Canceled {
		t.Errorf("Error = %v, want context.Canceled", result.Error)
	}
}

func TestUpdateAndVerify_RejectedWriteIsNotVerified(t *testing.T) {
	cloud := newFakeCloud()
	cloud.setpointStatus = http.StatusNotFound
	client := newTestClient(t, cloud)

	status, result := client.UpdateAndVerify(context.Background(), "10000001", 2150, fastVerification(0))
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if result.Success || result.Attempts != 0 {
		t.Errorf("Success = %v, Attempts = %d", result.Success, result.Attempts)
	}
	if cloud.count(http.MethodGet, "/apiv1/dsns/10000001/properties.json") != 0 {
		t.Error("a rejected write should not be read back")
	}
}

func TestUpdateAndVerify_Success(t *testing.T) {
	cloud := newFakeCloud()
	cloud.properties["10000001"] = setpointProperties(2150)
	client := newTestClient(t, cloud)

	status, result := client.UpdateAndVerify(context.Background(), "10000001", 2150, fastVerification(0))
	if status != http.StatusCreated {
		t.Errorf("status = %d, want 201", status)
	}
	if !result.Success || result.Attempts != 1 {
		t.Errorf("Success = %v, Attempts = %d, Error = %v", result.Success, result.Attempts, result.Error)
	}
}

func TestDefaultVerificationOptions(t *testing.T) {
	opts := DefaultVerificationOptions()
	if opts.MaxRetries != 3 || opts.InitialDelay <= 0 || opts.MaxRetryDelay < opts.RetryDelay {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}
