// Package esp is a small client for the Eskom-se-Push business API.
//
// Only the endpoints the notifier needs are covered: load-shedding status,
// API allowance, area search and area information. Every failure is an
// *Error carrying a Kind so callers can tell a bad token from a flaky
// network without string matching.
package esp
