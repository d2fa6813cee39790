package omx

import (
	"github.com/serum-errors/go-serum"
)

const (
	CodeValidation          = "omx-error-validation"
	CodeNotFound            = "omx-error-not-found"
	CodeLifecycle           = "omx-error-lifecycle"
	CodeFormatInconsistency = "omx-error-format-inconsistency"
	CodeBackingStore        = "omx-error-backing-store"
)

// ErrorValidation is returned when a value, shape or payload is rejected
// at the call that introduced it.
//
// Errors:
//
//   - omx-error-validation --
func ErrorValidation(reason string, deets ...[2]string) error {
	opts := make([]serum.WithConstruction, 0, len(deets)+2)
	opts = append(opts,
		serum.WithMessageTemplate("invalid: {{reason}}"),
		serum.WithDetail("reason", reason),
	)
	for _, d := range deets {
		opts = append(opts, serum.WithDetail(d[0], d[1]))
	}
	return serum.Error(CodeValidation, opts...)
}

// ErrorNotFound is returned when a matrix, lookup or attribute name is
// absent.
//
// Errors:
//
//   - omx-error-not-found --
func ErrorNotFound(kind, name string) error {
	return serum.Error(CodeNotFound,
		serum.WithMessageTemplate("{{kind}} {{name|q}} not found"),
		serum.WithDetail("kind", kind),
		serum.WithDetail("name", name),
	)
}

// ErrorLifecycle is returned when an operation is not allowed in the
// file's current state.
//
// Errors:
//
//   - omx-error-lifecycle --
func ErrorLifecycle(op, state string) error {
	return serum.Error(CodeLifecycle,
		serum.WithMessageTemplate("cannot {{op}}: file is {{state}}"),
		serum.WithDetail("op", op),
		serum.WithDetail("state", state),
	)
}

// ErrorFormatInconsistency is returned when a file fails the checks made
// at open.
//
// Errors:
//
//   - omx-error-format-inconsistency --
func ErrorFormatInconsistency(path, reason string) error {
	return serum.Error(CodeFormatInconsistency,
		serum.WithMessageTemplate("inconsistent omx file {{path|q}}: {{reason}}"),
		serum.WithDetail("path", path),
		serum.WithDetail("reason", reason),
	)
}

// ErrorBackingStore wraps a failure reported by the backing store.
//
// Errors:
//
//   - omx-error-backing-store --
func ErrorBackingStore(op, path string, cause error) error {
	return serum.Error(CodeBackingStore,
		serum.WithCause(cause),
		serum.WithMessageTemplate("backing store failed to {{op}} {{path|q}}"),
		serum.WithDetail("op", op),
		serum.WithDetail("path", path),
	)
}
