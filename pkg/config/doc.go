// Package config persists the canonical configuration document recording
// resolved stack and integration choices.
//
// The document has three required sections: integrations, tooling, and
// stack. Everything else is opaque payload. Re-persisting merges key-wise
// into the existing document instead of replacing it, so fields a user added
// by hand survive subsequent resolutions. Documents are validated against a
// CUE schema before any write, and the write is an atomic full replace.
package config
