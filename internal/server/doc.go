// Package server implements salus-bridge, a LAN service in front of one
// Salus Connect account.
//
// The bridge owns a single salus.Client. The client keeps one session and is
// not safe for concurrent use, so every surface goes through a
// SerialThermostat that holds a mutex for the duration of each call.
//
// # Routes
//
//	GET  /healthz                       liveness, replies "ok"
//	GET  /api/devices                   fresh ListDevices as JSON
//	GET  /api/devices/{id}              DeviceState as JSON
//	POST /api/devices/{id}/setpoint     {"value":2150} or {"celsius":21.5}
//	GET  /ws                            websocket feed of poll results
//	GET  /metrics                       Prometheus exposition
//
// The setpoint route answers {"status":<code>} with the status Salus Connect
// returned, even when that status is not 2xx. Validation failures answer 400.
//
// # Polling
//
// When PollInterval is set, a Poller calls ListDevices on that interval and
// hands each result to the websocket Hub and to every Publisher (the MQTT
// bridge). Poll errors are logged and the loop keeps going. Websocket
// subscribers that fall behind are disconnected.
//
// # Usage Example
//
//	srv, err := server.New(server.Config{
//	    Listen:       ":8710",
//	    PollInterval: time.Minute,
//	}, client, mqttPublisher)
//	if err != nil {
//	    return err
//	}
//	listener, err := net.Listen("tcp", ":8710")
//	if err != nil {
//	    return err
//	}
//	return srv.Serve(ctx, listener)
package server
