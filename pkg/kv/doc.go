// Package kv provides Store, a typed key-value store scoped to a namespace.
//
// Values are JSON encoded and written through a Backend. The in-memory backend
// (go-cache) serves tests and single-process deployments; the redis backend
// serves replicated ones.
package kv
