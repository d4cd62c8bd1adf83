/*
Package orchestrator implements the Orchestrator: the top-level entry
point that owns the active-session registry, creates/resumes/ends/forks
sessions, and dispatches committed events to the broadcast bus.

It generalizes the teacher's session.Service active-session bookkeeping
(internal/session/service.go's Service{active map[string]*ActiveSession}
guarded by a RWMutex) from "one agentic loop in flight per session" to
"a live Session Context per active session," delegating all ordering
concerns to internal/sessioncontext and all storage concerns to
internal/eventstore.

A background sweep (internal/orchestrator/sweep.go) ends sessions that
have been idle past a configured threshold, on a robfig/cron schedule.
*/
package orchestrator
