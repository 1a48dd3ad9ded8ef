// Package mqttbridge mirrors thermostat state onto an MQTT broker and accepts
// setpoint changes from it.
//
// Topics, for the default prefix "salus":
//
//	salus/<dsn>/state              retained DeviceSummary JSON, one per poll
//	salus/<dsn>/setpoint/set       subscribe; "21.5", "2150" or JSON
//	salus/<dsn>/setpoint/result    {"value":2150,"status":200} or {"error":"..."}
//	salus/bridge/availability      "online", or "offline" as last will
package mqttbridge
