// Package registry holds the domain model for the form registry: verified
// caller identities, content references, form lifecycle, responses, and the
// notification kinds emitted on every committed state change.
//
// Types here are pure data plus transition rules. Identifier allocation and
// persistence ordering belong to the storage layer; authorization belongs to
// the service layer.
package registry
