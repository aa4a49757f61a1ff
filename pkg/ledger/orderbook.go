package ledger

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/Sternrassler/xrpl-client/pkg/commands"
	"github.com/Sternrassler/xrpl-client/pkg/pagination"
	"golang.org/x/sync/errgroup"
)

// OrderbookSpec names the two sides of a book.
type OrderbookSpec struct {
	Base    Issue
	Counter Issue
}

// OrderbookOptions bounds each side of the book and selects the ledger.
// Both sides are read from the same ledger.
type OrderbookOptions struct {
	Limit         int   `validate:"gte=0"`
	LedgerVersion int64 `validate:"gte=0"`
}

// OrderbookState is the funded part of an order.
type OrderbookState struct {
	FundedAmount        Amount `json:"fundedAmount"`
	PriceOfFundedAmount Amount `json:"priceOfFundedAmount"`
}

// OrderbookOrder is an order as seen from a book.
type OrderbookOrder struct {
	Specification OrderSpecification `json:"specification"`
	Properties    OrderProperties    `json:"properties"`
	State         *OrderbookState    `json:"state,omitempty"`
}

// Orderbook holds the bids and asks of a book, both expressed with the
// base issue as quantity and sorted by quality.
type Orderbook struct {
	Bids []OrderbookOrder `json:"bids"`
	Asks []OrderbookOrder `json:"asks"`
}

type orderbookRequest struct {
	Address   string `validate:"required,xrpl_address"`
	Orderbook OrderbookSpec
	Options   OrderbookOptions
}

// bookOffer is one entry of book_offers.
type bookOffer struct {
	Account         string      `json:"Account"`
	Flags           uint32      `json:"Flags"`
	Sequence        int64       `json:"Sequence"`
	TakerGets       wireAmount  `json:"TakerGets"`
	TakerPays       wireAmount  `json:"TakerPays"`
	Expiration      int64       `json:"Expiration"`
	Quality         string      `json:"quality"`
	TakerGetsFunded *wireAmount `json:"taker_gets_funded"`
	TakerPaysFunded *wireAmount `json:"taker_pays_funded"`
}

// GetOrderbook reads both directions of the base/counter book as seen by
// address, concurrently.
func GetOrderbook(ctx context.Context, r Requester, address string, book OrderbookSpec, opts OrderbookOptions) (*Orderbook, error) {
	if err := validateStruct(orderbookRequest{Address: address, Orderbook: book, Options: opts}); err != nil {
		return nil, err
	}

	ledgerIndex, err := currentLedger(r, opts.LedgerVersion)
	if err != nil {
		return nil, err
	}

	var direct, reverse []bookOffer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		direct, err = getBookOffers(gctx, r, address, ledgerIndex, opts.Limit, book.Base, book.Counter)
		return err
	})
	g.Go(func() error {
		var err error
		reverse, err = getBookOffers(gctx, r, address, ledgerIndex, opts.Limit, book.Counter, book.Base)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return formatBidsAndAsks(book, append(direct, reverse...)), nil
}

func getBookOffers(ctx context.Context, r Requester, taker string, ledgerIndex int64, limit int, gets, pays Issue) ([]bookOffer, error) {
	params := map[string]any{
		"taker":        taker,
		"taker_gets":   gets.wire(),
		"taker_pays":   pays.wire(),
		"ledger_index": ledgerIndex,
	}
	if limit > 0 {
		params["limit"] = pagination.Clamp(limit, MinLimit, MaxLimit)
	}

	pages, err := r.RequestAll(ctx, commands.BookOffers, params, pagination.Options{})
	if err != nil {
		return nil, err
	}
	return decodeItems[bookOffer](pages, "offers")
}

func formatBidsAndAsks(book OrderbookSpec, offers []bookOffer) *Orderbook {
	sort.SliceStable(offers, func(i, j int) bool {
		return qualityOf(offers[i]) < qualityOf(offers[j])
	})

	out := &Orderbook{Bids: []OrderbookOrder{}, Asks: []OrderbookOrder{}}
	for _, offer := range offers {
		order := alignOrder(book.Base, parseOrderbookOrder(offer))
		switch order.Specification.Direction {
		case DirectionBuy:
			out.Bids = append(out.Bids, order)
		case DirectionSell:
			out.Asks = append(out.Asks, order)
		}
	}
	return out
}

// qualityOf orders unparseable qualities last.
func qualityOf(o bookOffer) float64 {
	q, err := strconv.ParseFloat(o.Quality, 64)
	if err != nil {
		return math.Inf(1)
	}
	return q
}

func parseOrderbookOrder(offer bookOffer) OrderbookOrder {
	order := parseAccountOrder(offer.Account, accountOffer{
		Flags:      offer.Flags,
		Seq:        offer.Sequence,
		TakerGets:  offer.TakerGets,
		TakerPays:  offer.TakerPays,
		Quality:    offer.Quality,
		Expiration: offer.Expiration,
	})

	result := OrderbookOrder{
		Specification: order.Specification,
		Properties:    order.Properties,
	}
	if offer.TakerGetsFunded != nil && offer.TakerPaysFunded != nil {
		state := &OrderbookState{}
		if order.Specification.Direction == DirectionSell {
			state.FundedAmount = Amount(*offer.TakerGetsFunded)
			state.PriceOfFundedAmount = Amount(*offer.TakerPaysFunded)
		} else {
			state.FundedAmount = Amount(*offer.TakerPaysFunded)
			state.PriceOfFundedAmount = Amount(*offer.TakerGetsFunded)
		}
		result.State = state
	}
	return result
}

// alignOrder flips an order so that its quantity is in the base issue.
func alignOrder(base Issue, order OrderbookOrder) OrderbookOrder {
	q := order.Specification.Quantity
	if q.Currency == base.Currency && q.Counterparty == base.Counterparty {
		return order
	}

	spec := order.Specification
	spec.Quantity, spec.TotalPrice = spec.TotalPrice, spec.Quantity
	if spec.Direction == DirectionBuy {
		spec.Direction = DirectionSell
	} else {
		spec.Direction = DirectionBuy
	}
	order.Specification = spec

	if order.State != nil {
		order.State = &OrderbookState{
			FundedAmount:        order.State.PriceOfFundedAmount,
			PriceOfFundedAmount: order.State.FundedAmount,
		}
	}
	return order
}
