package extract

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	movementPattern = regexp.MustCompile(
		`(?is)\b(cut|reduce|lower|decrease|raise|increase|hike|boost)\w*\b.*?(\d+/\d+|\d*\.?\d+)\s*(percentage points?|basis points?|%)`)
	maintainPattern = regexp.MustCompile(
		`(?is)\b(maintain|keep|leave|hold|held|kept)(s|ed|ing)?\b[^.]*?\btarget range\b`)
)

// KeywordExtractor finds the first sentence that moves or holds the rate,
// e.g. "decided to lower the target range ... by 1/4 percentage point".
type KeywordExtractor struct{}

func (KeywordExtractor) Extract(_ context.Context, text string) (int64, error) {
	move := movementPattern.FindStringSubmatchIndex(text)
	hold := maintainPattern.FindStringIndex(text)

	if hold != nil && (move == nil || hold[0] < move[0]) {
		return 0, nil
	}
	if move == nil {
		return 0, ErrNoDecision
	}

	direction := strings.ToLower(text[move[2]:move[3]])
	amount := text[move[4]:move[5]]
	unit := strings.ToLower(text[move[6]:move[7]])

	value, err := parseAmount(amount)
	if err != nil {
		return 0, ErrNoDecision
	}
	if !strings.HasPrefix(unit, "basis point") {
		value *= 100
	}
	bps := int64(math.Round(value))

	switch direction {
	case "raise", "increase", "hike", "boost":
		return bps, nil
	default:
		return -bps, nil
	}
}

func parseAmount(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, ErrNoDecision
		}
		return n / d, nil
	}
	return strconv.ParseFloat(s, 64)
}
