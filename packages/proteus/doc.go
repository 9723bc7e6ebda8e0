// Package proteus holds the BlueCat Proteus SOAP API pieces used by the
// delete-device workflow: request envelopes, the fixed SOAP headers, and the
// session cookie carried from login to the calls that follow it.
//
// Responses are never parsed. Success is decided by HTTP status alone.
package proteus
