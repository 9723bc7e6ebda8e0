// Package config handles configuration loading and management for proteusctl.
//
// It provides functionality for:
//   - Loading configuration from .proteusctl.json or .proteusctl.yaml files
//   - Validating configuration files against an embedded JSON schema
//   - Expanding ${VAR} references from the environment
//   - Default configuration values and CLI overrides
package config
