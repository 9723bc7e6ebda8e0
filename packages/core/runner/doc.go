// Package runner drives the delete-device workflow against a Proteus appliance.
//
// A run is three strictly sequential SOAP calls:
//   - login, which yields the session cookie
//   - deleteDeviceInstance, carrying the cookie
//   - logout, carrying the same cookie
//
// Each call gets a freshly configured HTTP helper. Any non-200 status or
// transport error ends the run at that step: the status and body are logged,
// the connection is released and the host is told the run failed. There are
// no retries.
package runner
