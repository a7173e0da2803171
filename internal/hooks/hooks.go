// Package hooks implements the extension points (SPEC_FULL.md §4.11):
// authorize (can this caller perform this operation on this bank),
// validate (is this input acceptable before it reaches a component), and
// on_complete (side effects to run after an operation finishes). All three
// default to permissive no-ops; a caller wires in real policy by replacing
// the function fields.
package hooks

import "context"

// Operation names passed to Authorize/Validate/OnComplete.
const (
	OpRetain      = "retain"
	OpRecall      = "recall"
	OpConsolidate = "consolidate"
	OpCreateBank  = "create_bank"
	OpDeleteBank  = "delete_bank"
)

// AuthorizeFunc decides whether a caller may perform op on bankID.
type AuthorizeFunc func(ctx context.Context, op, bankID string) error

// ValidateFunc checks input before it reaches a component; payload is
// operation-specific (e.g. the raw retain content).
type ValidateFunc func(ctx context.Context, op string, payload any) error

// OnCompleteFunc runs after an operation finishes, given its result (nil
// on failure) and any error.
type OnCompleteFunc func(ctx context.Context, op, bankID string, result any, opErr error)

// Hooks bundles the three extension points. The zero value is fully
// permissive: every Authorize/Validate call succeeds and OnComplete is a
// no-op.
type Hooks struct {
	Authorize  AuthorizeFunc
	Validate   ValidateFunc
	OnComplete OnCompleteFunc
}

// Default returns a Hooks value where every hook is a permissive no-op.
func Default() *Hooks {
	return &Hooks{
		Authorize:  func(context.Context, string, string) error { return nil },
		Validate:   func(context.Context, string, any) error { return nil },
		OnComplete: func(context.Context, string, string, any, error) {},
	}
}

// RunAuthorize calls h.Authorize if set, otherwise succeeds.
func (h *Hooks) RunAuthorize(ctx context.Context, op, bankID string) error {
	if h == nil || h.Authorize == nil {
		return nil
	}
	return h.Authorize(ctx, op, bankID)
}

// RunValidate calls h.Validate if set, otherwise succeeds.
func (h *Hooks) RunValidate(ctx context.Context, op string, payload any) error {
	if h == nil || h.Validate == nil {
		return nil
	}
	return h.Validate(ctx, op, payload)
}

// RunOnComplete calls h.OnComplete if set, otherwise does nothing.
func (h *Hooks) RunOnComplete(ctx context.Context, op, bankID string, result any, opErr error) {
	if h == nil || h.OnComplete == nil {
		return
	}
	h.OnComplete(ctx, op, bankID, result, opErr)
}
