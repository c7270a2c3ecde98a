package replay

import "amm-strategy-lab/internal/domain"

// ForwardFillPrices closes price gaps across a merged stream. Mint and burn
// rows carry no pool price of their own, so each missing price takes the
// last known one; a leading gap takes the first known price. PriceBefore and
// PriceNext are then recomputed from stream neighbors (the first event is
// its own predecessor, the last its own successor), so fee accrual over
// (PriceBefore, Price) spans work on any event kind.
//
// A stream with no priced event at all is left untouched.
func ForwardFillPrices(events []*domain.Event) {
	var last float64
	for _, e := range events {
		if e.Price > 0 {
			last = e.Price
		} else if last > 0 {
			e.Price = last
		}
	}
	if last == 0 {
		return
	}

	var first float64
	for _, e := range events {
		if e.Price > 0 {
			first = e.Price
			break
		}
	}
	for _, e := range events {
		if e.Price > 0 {
			break
		}
		e.Price = first
	}

	for i, e := range events {
		if i == 0 {
			e.PriceBefore = e.Price
		} else {
			e.PriceBefore = events[i-1].Price
		}
		if i == len(events)-1 {
			e.PriceNext = e.Price
		} else {
			e.PriceNext = events[i+1].Price
		}
	}
}
