// Package authority encodes the moderator role hierarchy: who may act on whom, who may appoint
// whom, where a moderator's scope reaches, and which actions each role is barred from.
//
// All tables are package-level and immutable after init. The only collaborator is the
// dominion.Directory used to resolve which dominion owns a territory.
package authority
