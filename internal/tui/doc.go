// Package tui provides the interactive thermostat dashboard for "salus dashboard".
//
// The dashboard is a single Bubble Tea model with four modes:
//
//	loading  spinner while ListDevices runs
//	list     thermostats in a bubbles/list, filterable with "/"
//	editing  text input for a new setpoint in °C
//	saving   spinner while UpdateTemperature runs
//
// Keys: "s" edits the selected thermostat, "r" refreshes, "q" quits.
// Client calls run as tea.Cmds so the UI never blocks on the network. A
// successful write triggers a refresh so the list shows the new target.
package tui
