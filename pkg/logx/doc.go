// Package logx is shednotify's structured logger: a small value type over
// zerolog with readable console output, an optional JSON file sink, runtime
// reconfiguration on config reload, and masking of API tokens.
package logx
