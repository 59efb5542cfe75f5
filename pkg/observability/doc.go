/*
Package observability exposes prometheus metrics for the inquiry engine.

Metrics are fed by domain.LifecycleHooks, the pacing queue depth observer and
the session completion observer, and served on their own registry.
*/
package observability
