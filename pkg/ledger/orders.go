package ledger

import (
	"context"
	"sort"

	"github.com/Sternrassler/xrpl-client/pkg/commands"
	"github.com/Sternrassler/xrpl-client/pkg/pagination"
)

// Offer ledger flags.
const (
	lsfPassive = 0x00010000
	lsfSell    = 0x00020000
)

// Direction of an order from the maker's side.
const (
	DirectionBuy  = "buy"
	DirectionSell = "sell"
)

// OrdersOptions selects the ledger and bounds the number of orders. A zero
// Limit fetches a single page; a zero LedgerVersion uses the client's most
// recent validated ledger.
type OrdersOptions struct {
	Limit         int   `validate:"gte=0"`
	LedgerVersion int64 `validate:"gte=0"`
}

// OrderSpecification describes what an order trades.
type OrderSpecification struct {
	Direction      string `json:"direction"`
	Quantity       Amount `json:"quantity"`
	TotalPrice     Amount `json:"totalPrice"`
	Passive        bool   `json:"passive,omitempty"`
	ExpirationTime int64  `json:"expirationTime,omitempty"`
}

// OrderProperties describes an order's ledger entry.
type OrderProperties struct {
	Maker             string `json:"maker"`
	Sequence          int64  `json:"sequence"`
	MakerExchangeRate string `json:"makerExchangeRate"`
}

// Order is an offer owned by an account.
type Order struct {
	Specification OrderSpecification `json:"specification"`
	Properties    OrderProperties    `json:"properties"`
}

type ordersRequest struct {
	Address string `validate:"required,xrpl_address"`
	Options OrdersOptions
}

// accountOffer is one entry of account_offers.
type accountOffer struct {
	Flags      uint32     `json:"flags"`
	Seq        int64      `json:"seq"`
	TakerGets  wireAmount `json:"taker_gets"`
	TakerPays  wireAmount `json:"taker_pays"`
	Quality    string     `json:"quality"`
	Expiration int64      `json:"expiration"`
}

// GetOrders returns the open orders of address sorted by sequence.
func GetOrders(ctx context.Context, r Requester, address string, opts OrdersOptions) ([]Order, error) {
	if err := validateStruct(ordersRequest{Address: address, Options: opts}); err != nil {
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
	if opts.Limit > 0 {
		params["limit"] = pagination.Clamp(opts.Limit, MinLimit, MaxLimit)
	}

	pages, err := r.RequestAll(ctx, commands.AccountOffers, params, pagination.Options{})
	if err != nil {
		return nil, err
	}

	offers, err := decodeItems[accountOffer](pages, "offers")
	if err != nil {
		return nil, err
	}
	return formatOrders(address, offers), nil
}

func formatOrders(address string, offers []accountOffer) []Order {
	orders := make([]Order, 0, len(offers))
	for _, offer := range offers {
		orders = append(orders, parseAccountOrder(address, offer))
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Properties.Sequence < orders[j].Properties.Sequence
	})
	return orders
}

func parseAccountOrder(address string, offer accountOffer) Order {
	spec := OrderSpecification{
		Passive:        offer.Flags&lsfPassive != 0,
		ExpirationTime: offer.Expiration,
	}
	// A sell order gives up TakerGets; a buy order acquires TakerPays.
	if offer.Flags&lsfSell != 0 {
		spec.Direction = DirectionSell
		spec.Quantity = Amount(offer.TakerGets)
		spec.TotalPrice = Amount(offer.TakerPays)
	} else {
		spec.Direction = DirectionBuy
		spec.Quantity = Amount(offer.TakerPays)
		spec.TotalPrice = Amount(offer.TakerGets)
	}

	return Order{
		Specification: spec,
		Properties: OrderProperties{
			Maker:             address,
			Sequence:          offer.Seq,
			MakerExchangeRate: offer.Quality,
		},
	}
}
