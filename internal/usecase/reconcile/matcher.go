package reconcile

import (
	"regexp"
	"strings"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/external/tracker"
)

var ticketKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// ExtractTicketKey returns the first explicit ticket-key mention in the
// text, empty when none.
func ExtractTicketKey(text string) string {
	return ticketKeyPattern.FindString(strings.ToUpper(text))
}

// Matcher resolves candidate facts to target tickets: explicit key first,
// then fuzzy similarity against open ticket summaries above the threshold.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the configured similarity threshold
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = 0.55
	}
	return &Matcher{threshold: threshold}
}

// Match resolves the target ticket key for a fact. Returns ("", false)
// when nothing resolves.
func (m *Matcher) Match(fact *entities.Fact, openTickets []tracker.Ticket) (string, bool) {
	// 1. Explicit key carried on the fact.
	if fact.TicketKey != "" {
		return fact.TicketKey, true
	}

	// 2. Explicit key mentioned in the fact text.
	if key := ExtractTicketKey(fact.Description); key != "" {
		return key, true
	}

	// 3. Fuzzy similarity against open ticket summaries.
	bestKey := ""
	bestScore := 0.0
	for _, t := range openTickets {
		score := Similarity(fact.Description, t.Summary())
		if score > bestScore {
			bestScore = score
			bestKey = t.Key
		}
	}
	if bestScore >= m.threshold && bestKey != "" {
		return bestKey, true
	}

	return "", false
}

// Similarity is the Dice coefficient over lowercase word tokens.
// 1.0 for identical token sets, 0.0 for disjoint.
func Similarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	common := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common++
		}
	}
	return 2.0 * float64(common) / float64(len(ta)+len(tb))
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if len(tok) < 2 {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}
