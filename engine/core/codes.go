package core

// Error codes attached to core.Error.Code, covering the error kinds named in
// spec.md §7. Handlers in engine/infra/server/router map these to HTTP
// status codes; they are also safe to log and return to callers verbatim.
const (
	ErrCodeValidation        = "validation_error"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeForbidden         = "forbidden"
	ErrCodeNotFound          = "not_found"
	ErrCodeConflict          = "conflict"
	ErrCodeProviderReconcile = "provider_reconcile_failed"
	ErrCodeNoDeployment      = "no_active_deployment"
	ErrCodeRuntimeInvocation = "runtime_invocation_failed"
	ErrCodeInternal          = "internal_error"
)
