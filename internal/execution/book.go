// Package execution replays an execution plan against a simulated limit order
// book and reports how the fills compare with the planned slippage.
package execution

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/tradecraft/internal/agents"
	"github.com/wonny/tradecraft/internal/contracts"
)

// Book sides
const (
	Bid = "bid"
	Ask = "ask"
)

const (
	seedLevels     = 8
	levelStepRatio = 0.0005 // 5 bps between seeded levels
	seedQtyMin     = 500.0
	seedQtySpan    = 2500.0
)

// restingOrder is one price level entry; seq breaks price ties (time priority)
type restingOrder struct {
	price float64
	seq   int64
	qty   float64
}

// side is a heap of resting orders ordered best price first
type side struct {
	orders []restingOrder
	better func(a, b float64) bool
}

func (s *side) Len() int { return len(s.orders) }

func (s *side) Less(i, j int) bool {
	a, b := s.orders[i], s.orders[j]
	if a.price != b.price {
		return s.better(a.price, b.price)
	}
	return a.seq < b.seq
}

func (s *side) Swap(i, j int) { s.orders[i], s.orders[j] = s.orders[j], s.orders[i] }

func (s *side) Push(x interface{}) { s.orders = append(s.orders, x.(restingOrder)) }

func (s *side) Pop() interface{} {
	old := s.orders
	n := len(old)
	o := old[n-1]
	s.orders = old[:n-1]
	return o
}

func (s *side) top() (restingOrder, bool) {
	if len(s.orders) == 0 {
		return restingOrder{}, false
	}
	return s.orders[0], true
}

// Fill is one execution against a resting order
type Fill struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// Match is the outcome of one market order. SlippageBps is measured against
// the mid at arrival.
type Match struct {
	Fills        []Fill
	AvgFillPrice float64
	FilledQty    float64
	UnfilledQty  float64
	SlippageBps  float64
}

// Quote is one aggregated book level
type Quote struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// Depth is a snapshot of the top of the book
type Depth struct {
	Bids      []Quote `json:"bids"`
	Asks      []Quote `json:"asks"`
	Mid       float64 `json:"mid"`
	SpreadBps float64 `json:"spread_bps"`
}

// OrderBook is a price-time priority limit order book
type OrderBook struct {
	ticker    string
	spreadBps float64
	bids      *side
	asks      *side
	seq       int64
}

func newOrderBook(ticker string, spreadBps float64) *OrderBook {
	return &OrderBook{
		ticker:    ticker,
		spreadBps: spreadBps,
		bids:      &side{better: func(a, b float64) bool { return a > b }},
		asks:      &side{better: func(a, b float64) bool { return a < b }},
	}
}

// NewOrderBook seeds 8 levels per side around mid, 5 bps apart, with sizes
// shrinking away from the touch
func NewOrderBook(ticker string, mid, spreadBps float64, rng agents.RandomSource) *OrderBook {
	b := newOrderBook(ticker, spreadBps)

	halfSpread := mid * spreadBps / 2 / 1e4
	bestBid := mid - halfSpread
	bestAsk := mid + halfSpread

	for i := 0; i < seedLevels; i++ {
		decay := math.Sqrt(1 / float64(i+1))
		step := float64(i) * mid * levelStepRatio

		_ = b.AddLimit(Bid, roundPrice(bestBid-step), (seedQtyMin+rng.Float64()*seedQtySpan)*decay)
	}
	for i := 0; i < seedLevels; i++ {
		decay := math.Sqrt(1 / float64(i+1))
		step := float64(i) * mid * levelStepRatio

		_ = b.AddLimit(Ask, roundPrice(bestAsk+step), (seedQtyMin+rng.Float64()*seedQtySpan)*decay)
	}
	return b
}

// Ticker returns the instrument the book was built for
func (b *OrderBook) Ticker() string {
	return b.ticker
}

// AddLimit rests an order on the bid or ask side
func (b *OrderBook) AddLimit(bookSide string, price, qty float64) error {
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("execution: invalid order %.4f x %.2f", price, qty)
	}

	b.seq++
	order := restingOrder{price: price, seq: b.seq, qty: qty}

	switch bookSide {
	case Bid:
		heap.Push(b.bids, order)
	case Ask:
		heap.Push(b.asks, order)
	default:
		return fmt.Errorf("execution: invalid side %q", bookSide)
	}
	return nil
}

// MatchMarket fills qty against the opposite side, best price first and
// oldest first within a price. A BUY lifts asks, a SELL hits bids.
func (b *OrderBook) MatchMarket(orderSide string, qty float64) Match {
	arrivalMid, _ := b.Mid()

	book := b.bids
	if orderSide == contracts.SideBuy {
		book = b.asks
	}

	var fills []Fill
	remaining := qty

	for remaining > 0 && book.Len() > 0 {
		top, _ := book.top()
		fillQty := math.Min(remaining, top.qty)
		fills = append(fills, Fill{Price: top.price, Qty: fillQty})
		remaining -= fillQty

		if fillQty >= top.qty {
			heap.Pop(book)
			continue
		}
		// partial: qty is not a sort key, the order keeps its place
		book.orders[0].qty = top.qty - fillQty
	}

	m := Match{Fills: fills, UnfilledQty: remaining}

	var notional float64
	for _, f := range fills {
		m.FilledQty += f.Qty
		notional += f.Price * f.Qty
	}
	if m.FilledQty > 0 {
		m.AvgFillPrice = notional / m.FilledQty
		if arrivalMid > 0 {
			m.SlippageBps = math.Abs(m.AvgFillPrice-arrivalMid) / arrivalMid * 1e4
		}
	}
	return m
}

// BestBid returns the highest resting bid
func (b *OrderBook) BestBid() (float64, bool) {
	o, ok := b.bids.top()
	return o.price, ok
}

// BestAsk returns the lowest resting ask
func (b *OrderBook) BestAsk() (float64, bool) {
	o, ok := b.asks.top()
	return o.price, ok
}

// Mid returns the touch midpoint; false when either side is empty
func (b *OrderBook) Mid() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// SpreadBps returns the touch spread in bps of mid
func (b *OrderBook) SpreadBps() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	mid := (bid + ask) / 2
	return (ask - bid) / mid * 1e4, true
}

// Depth returns up to levels orders per side, best first
func (b *OrderBook) Depth(levels int) Depth {
	d := Depth{
		Bids: quotes(b.bids, levels),
		Asks: quotes(b.asks, levels),
	}
	d.Mid, _ = b.Mid()
	d.SpreadBps, _ = b.SpreadBps()
	return d
}

// replenish rests qty on the side a child order just consumed, half a spread
// off the reference price
func (b *OrderBook) replenish(orderSide string, price, qty float64) {
	halfSpread := price * b.spreadBps / 2 / 1e4
	if orderSide == contracts.SideBuy {
		_ = b.AddLimit(Ask, roundPrice(price+halfSpread), qty)
		return
	}
	_ = b.AddLimit(Bid, roundPrice(price-halfSpread), qty)
}

func quotes(s *side, levels int) []Quote {
	orders := make([]restingOrder, len(s.orders))
	copy(orders, s.orders)
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].price != orders[j].price {
			return s.better(orders[i].price, orders[j].price)
		}
		return orders[i].seq < orders[j].seq
	})

	if levels > 0 && levels < len(orders) {
		orders = orders[:levels]
	}
	out := make([]Quote, 0, len(orders))
	for _, o := range orders {
		out = append(out, Quote{Price: o.price, Qty: math.Round(o.qty*100) / 100})
	}
	return out
}

func roundPrice(p float64) float64 {
	return math.Round(p*1e4) / 1e4
}
