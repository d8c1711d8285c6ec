// Package modelstore stages pretrained separation bundles on disk.
//
// A builtin registry names the bundles the app knows how to download. Fetch
// streams a bundle into the staging directory under a directory lock,
// hashing while it copies, and refuses to keep payloads that fail their
// checksum pin or do not parse as a bundle. Every staged bundle gets a YAML
// manifest sidecar recording where it came from and what was observed, so
// later runs can skip the download and verify integrity offline.
package modelstore
