// Package observability provides logging and metrics support for the SCIM
// provisioning service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for SCIM operations and database activity
//   - Context helpers for propagating request identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("resource_type", "User").Msg("resource created")
//
// Add operation context to a logger:
//
//	logger = observability.WithOperationContext(logger, "User", "create")
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("scimitar")
//
// Record metrics:
//
//	metrics.RecordOperation("User", "create", "success", elapsed)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - resource_type: SCIM resource type name (User, Group)
//   - operation: SCIM operation (list, get, create, replace, patch, delete)
//   - filter: SCIM filter expression
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
