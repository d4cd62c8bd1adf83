// Package config provides layered configuration loading and XDG path
// management for the event store daemon.
//
// # Configuration Loading
//
// Load implements the same global-then-project-then-env precedence
// order the teacher's opencode config loader uses, narrowed to the
// settings this system actually needs:
//
//  1. Global config (~/.config/eventstore/config.{json,jsonc,yaml})
//  2. Project config (<directory>/.eventstore/config.{json,jsonc,yaml})
//  3. EVENTSTORE_* environment variables
//
// Later sources override earlier ones field-by-field; a missing file
// at any layer is silently skipped.
//
// # Supported Formats
//
// JSON, JSONC (via tidwall/jsonc, which strips comments before
// unmarshaling), and YAML are all accepted — the loader picks the
// unmarshaler by file extension.
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/eventstore (XDG_DATA_HOME)
//   - Config: ~/.config/eventstore (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/eventstore (XDG_CACHE_HOME)
//   - State: ~/.local/state/eventstore (XDG_STATE_HOME)
//
// On Windows these fall back to APPDATA.
package config
