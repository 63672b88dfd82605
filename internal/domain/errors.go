package domain

import (
	"errors"
)

var (
	// ErrValidation signals a malformed search request. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized signals a missing or unknown caller identity. Never retried.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTenantRequired signals a retrieval call without tenant scope.
	ErrTenantRequired = errors.New("tenant id is required")

	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingRequired signals a vector channel requested without a query embedding.
	ErrEmbeddingRequired = errors.New("query embedding required")

	// ErrRetrieval signals a failed index query.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrQuotaExceeded signals an exhausted per-tenant search quota.
	ErrQuotaExceeded = errors.New("search quota exceeded")
	// ErrAllFallbacksFailed signals that every retrieval level returned an error.
	ErrAllFallbacksFailed = errors.New("all retrieval strategies failed")
)

// IsFatal reports whether err must end a search immediately, without fallbacks.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrTenantRequired) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrQuotaExceeded)
}
