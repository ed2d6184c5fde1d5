// Package moderation is the entry point for the warden moderation authority.
//
// The work is split across sub-packages: fingerprint hashes identities and summarizes behavior,
// authority encodes the role hierarchy and scopes, ladder evaluates sanctions, and audit builds
// and exports the audit log. The engine package ties those together with persistence (store),
// territory lookup (dominion) and the supporting counter, flag, cache and lock stores.
//
// Most callers only need the aliases in this package.
package moderation
