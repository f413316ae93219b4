// Package advisor defines the port the engine consumes an external
// reasoning/LLM-style provider through. The provider's own implementation
// is out of scope; this package names only the contract and the shared
// parsing grammar both Matcher and Adapter build on.
package advisor

import "context"

// Client accepts a system message and a user message and returns a single
// text block. Implementations should apply their own timeout internally;
// the caller also applies an overall deadline via ctx.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
