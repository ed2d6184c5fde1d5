// Package fingerprint derives stable, one-way pseudonymous identifiers for users and devices,
// and maintains small rolling summaries of user behavior.
//
// Everything here is a pure transform over caller-supplied material. Nothing in this package
// stores, logs, or needs the reversible identity behind a hash: the moderation engine keys all
// sanction and audit state on the values returned by HashIdentity and HashDevice.
package fingerprint
