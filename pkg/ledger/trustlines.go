package ledger

import (
	"context"

	"github.com/Sternrassler/xrpl-client/pkg/commands"
	"github.com/Sternrassler/xrpl-client/pkg/pagination"
)

// TrustlinesOptions filters and bounds a trustline listing.
type TrustlinesOptions struct {
	Limit         int    `validate:"gte=0"`
	LedgerVersion int64  `validate:"gte=0"`
	Counterparty  string `validate:"omitempty,xrpl_address"`
	Currency      string `validate:"omitempty,xrpl_currency"`
}

// TrustlineSpecification is the address's side of a trustline.
type TrustlineSpecification struct {
	Limit          string `json:"limit"`
	Currency       string `json:"currency"`
	Counterparty   string `json:"counterparty"`
	QualityIn      int64  `json:"qualityIn,omitempty"`
	QualityOut     int64  `json:"qualityOut,omitempty"`
	RippleDisabled bool   `json:"ripplingDisabled,omitempty"`
	Authorized     bool   `json:"authorized,omitempty"`
	Frozen         bool   `json:"frozen,omitempty"`
}

// TrustlineCounterparty is the peer's side of a trustline.
type TrustlineCounterparty struct {
	Limit          string `json:"limit"`
	RippleDisabled bool   `json:"ripplingDisabled,omitempty"`
	Authorized     bool   `json:"authorized,omitempty"`
	Frozen         bool   `json:"frozen,omitempty"`
}

// TrustlineState holds the balance from the address's perspective.
type TrustlineState struct {
	Balance string `json:"balance"`
}

// Trustline is one entry of an account's trustlines.
type Trustline struct {
	Specification TrustlineSpecification `json:"specification"`
	Counterparty  TrustlineCounterparty  `json:"counterparty"`
	State         TrustlineState         `json:"state"`
}

type trustlinesRequest struct {
	Address string `validate:"required,xrpl_address"`
	Options TrustlinesOptions
}

// accountLine is one entry of account_lines.
type accountLine struct {
	Account        string `json:"account"`
	Balance        string `json:"balance"`
	Currency       string `json:"currency"`
	Limit          string `json:"limit"`
	LimitPeer      string `json:"limit_peer"`
	QualityIn      int64  `json:"quality_in"`
	QualityOut     int64  `json:"quality_out"`
	NoRipple       bool   `json:"no_ripple"`
	NoRipplePeer   bool   `json:"no_ripple_peer"`
	Authorized     bool   `json:"authorized"`
	PeerAuthorized bool   `json:"peer_authorized"`
	Freeze         bool   `json:"freeze"`
	FreezePeer     bool   `json:"freeze_peer"`
}

// GetTrustlines returns the trustlines of address, optionally restricted to
// one counterparty and one currency.
func GetTrustlines(ctx context.Context, r Requester, address string, opts TrustlinesOptions) ([]Trustline, error) {
	if err := validateStruct(trustlinesRequest{Address: address, Options: opts}); err != nil {
		return nil, err
	}

	ledgerIndex, err := currentLedger(r, opts.LedgerVersion)
	if err != nil {
		return nil, err
	}

	params := map[string]any{
		"account":      address,
		"ledger_index": ledgerIndex,
	}
	if opts.Counterparty != "" {
		params["peer"] = opts.Counterparty
	}
	if opts.Limit > 0 {
		params["limit"] = pagination.Clamp(opts.Limit, MinLimit, MaxLimit)
	}

	pages, err := r.RequestAll(ctx, commands.AccountLines, params, pagination.Options{})
	if err != nil {
		return nil, err
	}

	lines, err := decodeItems[accountLine](pages, "lines")
	if err != nil {
		return nil, err
	}

	out := make([]Trustline, 0, len(lines))
	for _, line := range lines {
		if opts.Currency != "" && line.Currency != opts.Currency {
			continue
		}
		out = append(out, parseTrustline(line))
	}
	return out, nil
}

func parseTrustline(line accountLine) Trustline {
	return Trustline{
		Specification: TrustlineSpecification{
			Limit:          line.Limit,
			Currency:       line.Currency,
			Counterparty:   line.Account,
			QualityIn:      line.QualityIn,
			QualityOut:     line.QualityOut,
			RippleDisabled: line.NoRipple,
			Authorized:     line.Authorized,
			Frozen:         line.Freeze,
		},
		Counterparty: TrustlineCounterparty{
			Limit:          line.LimitPeer,
			RippleDisabled: line.NoRipplePeer,
			Authorized:     line.PeerAuthorized,
			Frozen:         line.FreezePeer,
		},
		State: TrustlineState{Balance: line.Balance},
	}
}
