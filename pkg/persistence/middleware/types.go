// Package middleware decorates persistence adapters: values written to a
// kv.Backend can be sealed with AES-GCM, and free-text answers can be masked
// before a Repository stores them.
package middleware

import (
	"github.com/aretw0/inquiry/pkg/kv"
	"github.com/aretw0/inquiry/pkg/ports"
)

// BackendMiddleware wraps a kv.Backend to add behavior.
type BackendMiddleware func(kv.Backend) kv.Backend

// RepositoryMiddleware wraps a Repository to add behavior.
type RepositoryMiddleware func(ports.Repository) ports.Repository

// Mask replaces every redacted span.
const Mask = "***"
