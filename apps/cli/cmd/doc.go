// Package cmd implements the proteusctl CLI commands using Cobra.
//
// Available commands:
//   - delete-device: Log in to Proteus, delete a device instance by IP, log out
//   - validate: Check a configuration file without contacting the appliance
//   - init: Write a sample configuration file
//   - mock: Serve a fake Proteus SOAP endpoint for lab runs
//   - version: Show proteusctl version information
//
// Every delete-device flag falls back to a PROTEUS_* environment variable,
// then to the configuration file.
package cmd
