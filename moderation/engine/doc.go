// Orchestration of moderation requests.
//
// Every mutating operation follows the same sequence: validate input, check the per-moderator
// rate limit, take the per-key lock, run role and scope checks, persist, then append the audit
// entry. A failed role or scope check is not an error: it returns an Outcome with Allowed false
// and a displayable Reason, after recording the denial in the audit log. Nothing else is written
// for a denied request.
//
// The Engine struct holds every collaborator as an interface so a deployment can choose
// in-memory or redis/database backed implementations; see EngineTestFixture for a fully
// in-memory configuration.
package engine
