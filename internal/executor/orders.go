package executor

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// ErrPriceOutOfRange reports that the market has moved outside the signal's
// entry window, so an instant order would fill at a price the signal never
// asked for. Callers match it with errors.Is and re-dispatch the order as
// a pending one that waits for the entry instead.
var ErrPriceOutOfRange = errors.New("market price outside signal entry range")

// Order modalities
const (
	ModalityInstant = "instant"
	ModalityLimit   = "limit"
	ModalityStop    = "stop"
)

// InstantRangeTolerance widens the entry window for instant orders
const InstantRangeTolerance = 1.0

// modalityFromMessage reads the requested modality out of the signal text.
// Signals that name no pending type execute instantly.
func modalityFromMessage(message string) string {
	upper := strings.ToUpper(message)
	switch {
	case strings.Contains(upper, "LIMIT"):
		return ModalityLimit
	case strings.Contains(upper, "STOP"):
		return ModalityStop
	default:
		return ModalityInstant
	}
}

// classifyPending picks the pending modality that actually reaches the
// entry from the current price: a buy below market rests as a limit, a buy
// above market as a stop, mirrored for sells.
func classifyPending(action string, entry, marketPrice float64) string {
	if action == market.SideBuy {
		if entry < marketPrice {
			return ModalityLimit
		}
		return ModalityStop
	}
	if entry > marketPrice {
		return ModalityLimit
	}
	return ModalityStop
}

// orderTypeFor maps a modality to the broker order type
func orderTypeFor(modality string) string {
	switch modality {
	case ModalityLimit:
		return market.OrderTypeLimit
	case ModalityStop:
		return market.OrderTypeStop
	default:
		return market.OrderTypeMarket
	}
}

var expiryPattern = regexp.MustCompile(`Expired\s+([0-9]*\.?[0-9]+)\s+days?`)

// parseExpiry reads the pending-order lifetime out of the signal message.
// Returns zero when the message names none.
func parseExpiry(message string) time.Duration {
	m := expiryPattern.FindStringSubmatch(message)
	if m == nil {
		return 0
	}
	days, err := strconv.ParseFloat(m[1], 64)
	if err != nil || days <= 0 {
		return 0
	}
	return time.Duration(days * 24 * float64(time.Hour))
}

// buildOrder assembles the broker request for one signal at one modality.
// Instant orders are range-checked against the live quote; pending orders
// are reclassified once if the requested modality sits on the wrong side
// of the market.
func buildOrder(signal *database.Signal, quote market.Quote, modality string, volume float64, now time.Time) (market.OrderRequest, string, error) {
	lo, hi := signal.Range1, signal.Range2
	if lo > hi {
		lo, hi = hi, lo
	}
	entry := (signal.Range1 + signal.Range2) / 2

	marketPrice := quote.Ask
	if signal.Action == market.SideSell {
		marketPrice = quote.Bid
	}

	if modality == ModalityInstant {
		if marketPrice < lo-InstantRangeTolerance || marketPrice > hi+InstantRangeTolerance {
			return market.OrderRequest{}, modality, ErrPriceOutOfRange
		}
		return market.OrderRequest{
			Symbol:     signal.Instrument,
			Side:       signal.Action,
			Type:       market.OrderTypeMarket,
			Volume:     volume,
			StopLoss:   signal.SL,
			TakeProfit: signal.TP1,
			Comment:    signal.Comment,
			ClientID:   uuid.NewString(),
		}, modality, nil
	}

	if correct := classifyPending(signal.Action, entry, marketPrice); correct != modality {
		modality = correct
	}

	req := market.OrderRequest{
		Symbol:     signal.Instrument,
		Side:       signal.Action,
		Type:       orderTypeFor(modality),
		Volume:     volume,
		Price:      entry,
		StopLoss:   signal.SL,
		TakeProfit: signal.TP1,
		Comment:    signal.Comment,
		ClientID:   uuid.NewString(),
	}
	if expiry := parseExpiry(signal.Message); expiry > 0 {
		t := now.Add(expiry)
		req.Expiration = &t
	}
	return req, modality, nil
}

// fallbackModalities lists the modalities to force after the preferred one
// fails outright.
func fallbackModalities(preferred string) []string {
	order := []string{ModalityInstant, ModalityLimit, ModalityStop}
	out := []string{preferred}
	for _, m := range order {
		if m != preferred {
			out = append(out, m)
		}
	}
	return out
}
