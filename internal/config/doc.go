// Package config loads, validates, and normalizes the TOML configuration for
// the Remix toolkit.
//
// Configuration resolves from an explicit --config path, then
// ~/.config/remix/config.toml, then ./remix.toml, falling back to built-in
// defaults when no file exists. Path fields are tilde-expanded and made
// absolute during normalization so downstream packages never see relative or
// home-anchored paths.
//
// Commands rely on Load returning a fully validated config; add new knobs by
// extending the section structs, Default(), normalize(), and Validate()
// together, and document them in sample_config.toml.
package config
