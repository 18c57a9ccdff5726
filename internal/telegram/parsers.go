// Package telegram ingests trade signals from Telegram channels. Each
// known sender has a registered parser that turns the channel's message
// format into a signal row for the executor.
package telegram

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// ErrUnknownSender is returned when no parser is registered for a sender
var ErrUnknownSender = errors.New("no parser registered for sender")

// ErrNotASignal is returned for messages that are chatter, not signals
var ErrNotASignal = errors.New("message is not a trade signal")

// ParseFunc turns one message into a signal
type ParseFunc func(text string) (*database.Signal, error)

// Registry maps senders to their message parsers
type Registry struct {
	parsers map[string]ParseFunc
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]ParseFunc)}
}

// Register binds a parser to a sender name. Later registrations replace
// earlier ones.
func (r *Registry) Register(sender string, fn ParseFunc) {
	r.parsers[strings.ToLower(sender)] = fn
}

// Parse dispatches a message to the sender's parser
func (r *Registry) Parse(sender, text string) (*database.Signal, error) {
	fn, ok := r.parsers[strings.ToLower(sender)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSender, sender)
	}
	return fn(text)
}

var (
	actionPattern = regexp.MustCompile(`(?i)\b(BUY|SELL)\b`)
	rangePattern  = regexp.MustCompile(`([0-9]{3,5}(?:\.[0-9]+)?)\s*[-/]\s*([0-9]{3,5}(?:\.[0-9]+)?)`)
	atPattern     = regexp.MustCompile(`@\s*([0-9]{3,5}(?:\.[0-9]+)?)`)
	slPattern     = regexp.MustCompile(`(?i)\bSL[:\s]+([0-9]{3,5}(?:\.[0-9]+)?)`)
	tpPattern     = regexp.MustCompile(`(?i)\bTP[0-9]?[:\s]+([0-9]{3,5}(?:\.[0-9]+)?)`)
)

// targetRiskReward rebuilds the runner target when the message names fewer
// than two take profits.
const targetRiskReward = 2.0

// ParseGoldSignal reads the common gold-channel format: an action, an
// entry price or range, a stop and one or two targets. A missing second
// target is rebuilt at 2R.
func ParseGoldSignal(text string) (*database.Signal, error) {
	actionMatch := actionPattern.FindStringSubmatch(text)
	if actionMatch == nil {
		return nil, ErrNotASignal
	}
	action := market.SideBuy
	if strings.EqualFold(actionMatch[1], "SELL") {
		action = market.SideSell
	}

	slMatch := slPattern.FindStringSubmatch(text)
	if slMatch == nil {
		return nil, fmt.Errorf("%w: no stop loss", ErrNotASignal)
	}
	sl, _ := strconv.ParseFloat(slMatch[1], 64)

	var range1, range2 float64
	if m := rangePattern.FindStringSubmatch(text); m != nil {
		range1, _ = strconv.ParseFloat(m[1], 64)
		range2, _ = strconv.ParseFloat(m[2], 64)
	} else if m := atPattern.FindStringSubmatch(text); m != nil {
		range1, _ = strconv.ParseFloat(m[1], 64)
		range2 = range1
	} else {
		return nil, fmt.Errorf("%w: no entry price", ErrNotASignal)
	}
	entry := (range1 + range2) / 2

	var tps []float64
	for _, m := range tpPattern.FindAllStringSubmatch(text, 2) {
		tp, _ := strconv.ParseFloat(m[1], 64)
		tps = append(tps, tp)
	}
	if len(tps) == 0 {
		return nil, fmt.Errorf("%w: no take profit", ErrNotASignal)
	}

	tp1 := tps[0]
	var tp2 float64
	if len(tps) > 1 {
		tp2 = tps[1]
	} else if action == market.SideBuy {
		tp2 = entry + targetRiskReward*(entry-sl)
	} else {
		tp2 = entry - targetRiskReward*(sl-entry)
	}

	risk := entry - sl
	if action == market.SideSell {
		risk = sl - entry
	}
	if risk <= 0 {
		return nil, fmt.Errorf("%w: stop on the wrong side", ErrNotASignal)
	}

	return &database.Signal{
		Action:  action,
		Range1:  range1,
		Range2:  range2,
		TP1:     tp1,
		TP2:     tp2,
		SL:      sl,
		Message: text,
		Risk:    risk,
	}, nil
}
