package ledger

import (
	"context"

	"github.com/Sternrassler/xrpl-client/pkg/commands"
)

// ValidatedLedger summarizes the server's last validated ledger.
type ValidatedLedger struct {
	Age            int64   `json:"age"`
	BaseFeeXRP     float64 `json:"base_fee_xrp"`
	Hash           string  `json:"hash"`
	ReserveBaseXRP float64 `json:"reserve_base_xrp"`
	ReserveIncXRP  float64 `json:"reserve_inc_xrp"`
	LedgerVersion  int64   `json:"seq"`
}

// ServerInfo is the subset of server_info the client reports.
type ServerInfo struct {
	BuildVersion     string           `json:"build_version"`
	CompleteLedgers  string           `json:"complete_ledgers"`
	HostID           string           `json:"hostid"`
	IOLatencyMs      int64            `json:"io_latency_ms"`
	LoadFactor       float64          `json:"load_factor"`
	Peers            int64            `json:"peers"`
	PubkeyNode       string           `json:"pubkey_node"`
	ServerState      string           `json:"server_state"`
	ValidatedLedger  *ValidatedLedger `json:"validated_ledger,omitempty"`
	ValidationQuorum int64            `json:"validation_quorum"`
}

// GetServerInfo returns the status of the connected server.
func GetServerInfo(ctx context.Context, r Requester) (*ServerInfo, error) {
	resp, err := r.Request(ctx, commands.ServerInfo, map[string]any{}, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		Info ServerInfo `json:"info"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result.Info, nil
}

// GetLedgerVersion returns the most recent validated ledger version known to
// the client, without a round-trip.
func GetLedgerVersion(r Requester) (int64, error) {
	return r.LedgerVersion()
}
