package salus

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

const mixedInventory = `[
	{"device":{"dsn":"10000001","product_name":"Lounge","oem_model":"SQ610","connection_status":"Online"}},
	{"device":{"dsn":"20000002","product_name":"Gateway","oem_model":"UGE600","connection_status":"Online"}},
	{"device":{"dsn":"10000003","product_name":"Bedroom","oem_model":"SQ610","connection_status":"Online"}},
	{"device":{"dsn":"30000004","product_name":"Plug","oem_model":"SPE600","connection_status":"Offline"}}
]`

func loungeProperties() string {
	return `[
		{"property":{"display_name":"LocalTemperature_x100","value":2150,"product_name":"Lounge"}},
		{"property":{"display_name":"HeatingSetpoint_x100","value":2000,"product_name":"Lounge"}},
		{"property":{"display_name":"SunnySetpoint_x100","value":45,"product_name":"Lounge"}},
		{"property":{"display_name":"RunningMode","value":1,"product_name":"Lounge"}}
	]`
}

func TestListDevices_FiltersModelAndKeepsOrder(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devicesBody = mixedInventory
	cloud.properties["10000001"] = loungeProperties()
	cloud.properties["10000003"] = `[
		{"property":{"display_name":"LocalTemperature_x100","value":1890,"product_name":"Bedroom"}},
		{"property":{"display_name":"HeatingSetpoint_x100","value":1600,"product_name":"Bedroom"}},
		{"property":{"display_name":"RunningMode","value":0,"product_name":"Bedroom"}}
	]`
	client := newTestClient(t, cloud)

	got, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	want := []DeviceSummary{
		{ID: "10000001", Name: "Lounge", Current: 2150, Target: 2000, Humidity: 45, Heating: true},
		{ID: "10000003", Name: "Bedroom", Current: 1890, Target: 1600, Humidity: 0, Heating: false},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d devices, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("device[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	// Non-matching devices must not even have their properties fetched
	for _, r := range cloud.Requests() {
		if r.Path == "/apiv1/dsns/20000002/properties.json" || r.Path == "/apiv1/dsns/30000004/properties.json" {
			t.Errorf("unexpected property fetch for filtered device: %s", r.Path)
		}
	}
}

func TestListDevices_SequentialRequestOrder(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devicesBody = mixedInventory
	cloud.properties["10000001"] = loungeProperties()
	cloud.properties["10000003"] = `[]`
	client := newTestClient(t, cloud)

	if _, err := client.ListDevices(context.Background()); err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	var paths []string
	for _, r := range cloud.Requests() {
		paths = append(paths, r.Path)
	}
	want := []string{
		signInPath,
		devicesPath,
		"/apiv1/dsns/10000001/properties.json",
		"/apiv1/dsns/10000003/properties.json",
	}
	if len(paths) != len(want) {
		t.Fatalf("requests = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestListDevices_SignsInEveryCall(t *testing.T) {
	cloud := newFakeCloud()
	client := newTestClient(t, cloud)

	for i := 0; i < 2; i++ {
		if _, err := client.ListDevices(context.Background()); err != nil {
			t.Fatalf("ListDevices() error = %v", err)
		}
	}

	if n := cloud.count(http.MethodPost, signInPath); n != 2 {
		t.Errorf("sign-ins = %d, want 2", n)
	}
}

func TestListDevices_PropertyFailureFailsWholeCall(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devicesBody = mixedInventory
	cloud.properties["10000001"] = loungeProperties()
	cloud.propertyStatus["10000003"] = http.StatusInternalServerError
	client := newTestClient(t, cloud)

	got, err := client.ListDevices(context.Background())
	if err == nil {
		t.Fatal("ListDevices() should fail when a device fetch fails")
	}
	if got != nil {
		t.Errorf("ListDevices() returned partial results: %+v", got)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("error = %v, want wrapped HTTP 500 APIError", err)
	}
}

func TestListDevices_LoginFailure(t *testing.T) {
	cloud := newFakeCloud()
	cloud.signInStatus = http.StatusUnauthorized
	client := newTestClient(t, cloud)

	_, err := client.ListDevices(context.Background())
	if !IsAuthError(err) {
		t.Errorf("ListDevices() error = %v, want auth error", err)
	}
	if n := cloud.count(http.MethodGet, devicesPath); n != 0 {
		t.Errorf("inventory fetched %d times after failed sign-in", n)
	}
}

func TestListDevices_MalformedInventory(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devicesBody = `{"not":"a list"}`
	client := newTestClient(t, cloud)

	_, err := client.ListDevices(context.Background())
	if !IsParseError(err) {
		t.Errorf("ListDevices() error = %v, want parse error", err)
	}
}

func TestListDevicesJSON(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devicesBody = `[{"device":{"dsn":"10000001","product_name":"Lounge","oem_model":"SQ610"}}]`
	cloud.properties["10000001"] = loungeProperties()
	client := newTestClient(t, cloud)

	got, err := client.ListDevicesJSON(context.Background())
	if err != nil {
		t.Fatalf("ListDevicesJSON() error = %v", err)
	}

	want := `[{"id":"10000001","name":"Lounge","current":2150,"target":2000,"humidity":45,"heating":true}]`
	if got != want {
		t.Errorf("ListDevicesJSON() = %s, want %s", got, want)
	}
}

func TestListDevicesJSON_Empty(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devicesBody = `[{"device":{"dsn":"20000002","product_name":"Gateway","oem_model":"UGE600"}}]`
	client := newTestClient(t, cloud)

	got, err := client.ListDevicesJSON(context.Background())
	if err != nil {
		t.Fatalf("ListDevicesJSON() error = %v", err)
	}
	if got != "[]" {
		t.Errorf("ListDevicesJSON() = %s, want []", got)
	}
}

func TestEncodeSummaries_Nil(t *testing.T) {
	got, err := EncodeSummaries(nil)
	if err != nil {
		t.Fatalf("EncodeSummaries() error = %v", err)
	}
	if got != "[]" {
		t.Errorf("EncodeSummaries(nil) = %s, want []", got)
	}
}

func TestInventory_RequiresSession(t *testing.T) {
	cloud := newFakeCloud()
	client := newTestClient(t, cloud)

	_, err := client.Inventory(context.Background(), Session{})
	if !IsValidationError(err) {
		t.Errorf("Inventory() error = %v, want validation error", err)
	}
	if len(cloud.Requests()) != 0 {
		t.Error("Inventory() with empty session should not make requests")
	}
}

func TestWithAcceptedModel(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devicesBody = mixedInventory
	cloud.properties["20000002"] = `[]`
	client := newTestClient(t, cloud, WithAcceptedModel("UGE600"))

	got, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "20000002" {
		t.Errorf("ListDevices() = %+v, want only 20000002", got)
	}
}
