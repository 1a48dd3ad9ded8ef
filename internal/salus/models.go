package salus

import (
	"encoding/json"
	"time"
)

const (
	// DefaultBaseURL is the Salus Connect cloud endpoint (EU region)
	DefaultBaseURL = "https://eu.salusconnect.io"

	// AcceptedModel is the OEM model string of the SQ610 thermostat.
	// Devices reporting any other model are left out of ListDevices.
	AcceptedModel = "SQ610"

	// Property display names recognized by ReduceProperties
	PropertyTemperature     = "LocalTemperature_x100"
	PropertyHumidity        = "SunnySetpoint_x100"
	PropertyHeatingSetpoint = "HeatingSetpoint_x100"
	PropertyRunningMode     = "RunningMode"

	// SetpointProperty is the datapoint written by UpdateTemperature
	SetpointProperty = "ep_9:sIT600TH:SetHeatingSetpoint_x100"

	// MinSetpoint and MaxSetpoint bound UpdateTemperature values
	// (hundredths of a degree Celsius, 5.00°C to 35.00°C)
	MinSetpoint = 500
	MaxSetpoint = 3500
)

// API paths, relative to the base URL
const (
	signInPath     = "/users/sign_in.json"
	devicesPath    = "/apiv1/devices.json"
	propertiesPath = "/apiv1/dsns/%s/properties.json"
	datapointsPath = "/apiv1/dsns/%s/properties/%s/datapoints.json"
)

// Credentials is the account username (email) and password used to sign in.
type Credentials struct {
	Username string
	Password string
}

// Session is a bearer token obtained from Login.
// The client does not track expiry; the token is trusted for one call chain.
type Session struct {
	Token    string
	IssuedAt time.Time
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool {
	return s.Token != ""
}

// DeviceSummary is one row of ListDevices output.
// Temperatures are in hundredths of a degree Celsius, as reported by the device.
type DeviceSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Current  float64 `json:"current"`
	Target   float64 `json:"target"`
	Humidity float64 `json:"humidity"`
	Heating  bool    `json:"heating"`
}

// DeviceState is the reduction of a device's property list.
type DeviceState struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"displayName"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	HeatingSetpoint float64 `json:"heatingSetpoint"`
	RunningMode     bool    `json:"runningMode"`
}

// Summary combines an inventory entry with its reduced state.
func (d Device) Summary(state DeviceState) DeviceSummary {
	return DeviceSummary{
		ID:       d.DSN,
		Name:     d.ProductName,
		Current:  state.Temperature,
		Target:   state.HeatingSetpoint,
		Humidity: state.Humidity,
		Heating:  state.RunningMode,
	}
}

// Wire types

type signInRequest struct {
	User signInUser `json:"user"`
}

type signInUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Role         string `json:"role"`
}

// DeviceEnvelope wraps one entry of /apiv1/devices.json
type DeviceEnvelope struct {
	Device Device `json:"device"`
}

// Device is an inventory record. Only DSN, ProductName and OEMModel are used;
// the rest is decoded for display.
type Device struct {
	DSN              string `json:"dsn"`
	ProductName      string `json:"product_name"`
	Model            string `json:"model"`
	OEMModel         string `json:"oem_model"`
	ConnectionStatus string `json:"connection_status"`
	SoftwareVersion  string `json:"sw_version"`
	MAC              string `json:"mac"`
	LANIP            string `json:"lan_ip"`
	ConnectedAt      string `json:"connected_at"`
	ProductClass     string `json:"product_class"`
	DeviceType       string `json:"device_type"`
	UniqueHardwareID string `json:"unique_hardware_id"`
	LANEnabled       bool   `json:"lan_enabled"`
	HasProperties    bool   `json:"has_properties"`
	TemplateID       int    `json:"template_id"`
	Key              int    `json:"key"`
	DeviceID         int    `json:"id"`
}

// PropertyEnvelope wraps one entry of /apiv1/dsns/{id}/properties.json
type PropertyEnvelope struct {
	Property Property `json:"property"`
}

// Property is a named device datapoint. Value is kept raw because its type
// depends on BaseType (integer, boolean, string, ...).
type Property struct {
	Name          string          `json:"name"`
	DisplayName   string          `json:"display_name"`
	ProductName   string          `json:"product_name"`
	BaseType      string          `json:"base_type"`
	Direction     string          `json:"direction"`
	DataUpdatedAt string          `json:"data_updated_at"`
	Value         json.RawMessage `json:"value"`
}

type datapointRequest struct {
	Datapoint datapointValue `json:"datapoint"`
}

type datapointValue struct {
	Value float64 `json:"value"`
}
