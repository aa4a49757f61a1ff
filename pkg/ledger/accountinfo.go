package ledger

import (
	"context"

	"github.com/Sternrassler/xrpl-client/pkg/commands"
)

// AccountInfoOptions selects the ledger to read. Zero means the most recent
// validated ledger.
type AccountInfoOptions struct {
	LedgerVersion int64 `validate:"gte=0"`
}

// AccountInfo is the formatted account root of an address.
type AccountInfo struct {
	Sequence                                  int64  `json:"sequence"`
	XRPBalance                                string `json:"xrpBalance"`
	OwnerCount                                int64  `json:"ownerCount"`
	PreviousInitiatedTransactionID            string `json:"previousInitiatedTransactionID,omitempty"`
	PreviousAffectingTransactionID            string `json:"previousAffectingTransactionID"`
	PreviousAffectingTransactionLedgerVersion int64  `json:"previousAffectingTransactionLedgerVersion"`
}

type accountInfoRequest struct {
	Address string `validate:"required,xrpl_address"`
	Options AccountInfoOptions
}

type accountInfoResult struct {
	AccountData struct {
		Balance           string `json:"Balance"`
		Sequence          int64  `json:"Sequence"`
		OwnerCount        int64  `json:"OwnerCount"`
		AccountTxnID      string `json:"AccountTxnID"`
		PreviousTxnID     string `json:"PreviousTxnID"`
		PreviousTxnLgrSeq int64  `json:"PreviousTxnLgrSeq"`
	} `json:"account_data"`
}

// GetAccountInfo returns the account root of address.
func GetAccountInfo(ctx context.Context, r Requester, address string, opts AccountInfoOptions) (*AccountInfo, error) {
	if err := validateStruct(accountInfoRequest{Address: address, Options: opts}); err != nil {
		return nil, err
	}

	resp, err := r.Request(ctx, commands.AccountInfo, map[string]any{
		"account":      address,
		"ledger_index": ledgerSelector(opts.LedgerVersion, "validated"),
	}, 0)
	if err != nil {
		return nil, err
	}

	var result accountInfoResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return formatAccountInfo(result)
}

func formatAccountInfo(result accountInfoResult) (*AccountInfo, error) {
	data := result.AccountData
	balance, err := DropsToXRP(data.Balance)
	if err != nil {
		return nil, err
	}
	return &AccountInfo{
		Sequence:                       data.Sequence,
		XRPBalance:                     balance,
		OwnerCount:                     data.OwnerCount,
		PreviousInitiatedTransactionID: data.AccountTxnID,
		PreviousAffectingTransactionID: data.PreviousTxnID,
		PreviousAffectingTransactionLedgerVersion: data.PreviousTxnLgrSeq,
	}, nil
}
