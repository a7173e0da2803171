package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultHooksArePermissive(t *testing.T) {
	h := Default()
	ctx := context.Background()

	require.NoError(t, h.RunAuthorize(ctx, OpRetain, "bank-1"))
	require.NoError(t, h.RunValidate(ctx, OpRetain, "some content"))
	require.NotPanics(t, func() { h.RunOnComplete(ctx, OpRetain, "bank-1", nil, nil) })
}

func TestNilHooksArePermissive(t *testing.T) {
	var h *Hooks
	ctx := context.Background()

	require.NoError(t, h.RunAuthorize(ctx, OpRecall, "bank-1"))
	require.NoError(t, h.RunValidate(ctx, OpRecall, nil))
	require.NotPanics(t, func() { h.RunOnComplete(ctx, OpRecall, "bank-1", nil, nil) })
}

func TestCustomAuthorizeIsCalled(t *testing.T) {
	denied := errors.New("denied")
	h := &Hooks{
		Authorize: func(ctx context.Context, op, bankID string) error {
			if op == OpDeleteBank {
				return denied
			}
			return nil
		},
	}

	require.ErrorIs(t, h.RunAuthorize(context.Background(), OpDeleteBank, "bank-1"), denied)
	require.NoError(t, h.RunAuthorize(context.Background(), OpRecall, "bank-1"))
}

func TestOnCompleteReceivesResultAndError(t *testing.T) {
	var gotOp, gotBank string
	var gotResult any
	var gotErr error

	h := &Hooks{
		OnComplete: func(ctx context.Context, op, bankID string, result any, opErr error) {
			gotOp, gotBank, gotResult, gotErr = op, bankID, result, opErr
		},
	}

	failure := errors.New("boom")
	h.RunOnComplete(context.Background(), OpConsolidate, "bank-2", 42, failure)

	require.Equal(t, OpConsolidate, gotOp)
	require.Equal(t, "bank-2", gotBank)
	require.Equal(t, 42, gotResult)
	require.ErrorIs(t, gotErr, failure)
}
