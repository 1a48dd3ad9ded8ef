// Package salus provides an HTTP client for the Salus Connect thermostat cloud.
//
// The client signs in with an account's email and password, lists the
// account's SQ610 thermostats with their current readings, reads one
// device's property set, and writes a new heating setpoint.
//
// # Units
//
// Temperatures and setpoints travel as hundredths of a degree Celsius
// (2150 is 21.50°C) and are returned unscaled. SetpointFromCelsius and
// CelsiusFromSetpoint convert.
//
// # Sessions
//
// By default ListDevices and UpdateTemperature sign in before every call and
// DeviceState reuses whatever session the client already holds. WithSessionReuse
// lets all operations share a session for a bounded time.
//
// # Usage Example
//
//	client, err := salus.NewClient(salus.Credentials{
//	    Username: "me@example.com",
//	    Password: os.Getenv("SALUS_PASSWORD"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	devices, err := client.ListDevices(ctx)
//	if err != nil {
//	    log.Fatal(salus.ShortErrorMessage(err))
//	}
//
//	status, err := client.UpdateTemperature(ctx, devices[0].ID, 2150)
//
// # Error Handling
//
// All failures are *APIError values carrying an ErrorType. Use IsAuthError,
// IsNetworkError, IsValidationError and friends to branch, and
// TroubleshootingHint for user-facing advice. The client never retries.
//
// A Client is not safe for concurrent use.
package salus
