// Package config loads and merges critic configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (CRITIC_MODEL, CRITIC_FORMAT, CRITIC_CONTEXT_LINES, etc.)
//  3. Config file ($XDG_CONFIG_HOME/critic/config.json)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write one back, and
// [SetField] to update a single key by name.
package config
