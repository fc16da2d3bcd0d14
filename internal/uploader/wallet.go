package uploader

import (
	"context"
	"errors"
)

// ErrUserRejected means the user declined a wallet prompt. It terminates the
// upload quietly: a rejection is a decision, not an infrastructure failure,
// and must never be surfaced as one.
var ErrUserRejected = errors.New("wallet interaction rejected by user")

// TxSummary describes the registration transaction presented to the user for
// approval before a batch is submitted.
type TxSummary struct {
	BatchIndex  int
	BatchCount  int
	RecordCount int
}

// Wallet is the signing collaborator that gates registry writes. Connect asks
// for account access once per upload; Approve blocks on the out-of-process
// user prompt for each batch. Both return ErrUserRejected when the user
// declines. Neither applies a timeout: an unanswered prompt stalls the upload
// until the user resolves it.
type Wallet interface {
	Connect(ctx context.Context) error
	Approve(ctx context.Context, tx TxSummary) error
}

// AutoApproveWallet approves everything. Used for server-side uploads where
// the owner key is held by the service itself.
type AutoApproveWallet struct{}

func (AutoApproveWallet) Connect(ctx context.Context) error { return nil }

func (AutoApproveWallet) Approve(ctx context.Context, tx TxSummary) error { return nil }
