package inline

import "github.com/pkg/errors"

// Error kinds returned by expansion. Test for them with errors.Is; the wrapped
// message names the offending call site.
var (
	// ErrBindingOutOfRange: the call site has more inputs or outputs than the function.
	ErrBindingOutOfRange = errors.New("binding out of range")

	// ErrUnresolvedOpsetImport: the function imports no version of the call site's domain.
	ErrUnresolvedOpsetImport = errors.New("no opset import for domain")

	// ErrSchemaNotFound: no schema registered for the call's operator at the resolved version.
	ErrSchemaNotFound = errors.New("operator schema not found")

	// ErrRecursionLimit: nested function calls exceeded the configured depth.
	ErrRecursionLimit = errors.New("function inlining recursion limit exceeded")
)
