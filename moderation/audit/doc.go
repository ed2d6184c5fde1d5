// Package audit builds, filters, summarizes and exports moderation audit entries.
//
// Entries are append-only. This package only constructs and reads them; storage is the
// persistence collaborator's concern (see moderation/store).
package audit
