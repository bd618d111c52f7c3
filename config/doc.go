// Package config loads bridge settings from CALLBRIDGE_* environment
// variables and turns them into a logger, bridge options and a wasm guest
// configuration.
package config
