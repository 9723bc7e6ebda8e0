// Package env loads .env files holding Proteus credentials and connection
// settings, so they can stay out of shell history and config files.
package env
