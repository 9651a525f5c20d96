package replay

import "strings"

// ButtonCandidate describes one button scraped from the live page.
type ButtonCandidate struct {
	Text  string
	ID    string
	Index int     // document order among all scanned buttons
	Y     float64 // vertical midpoint in page coordinates
}

// Matcher picks one candidate from a non-empty slice, or nil to pass.
// The tie-break policy between near-duplicate buttons is expressed as an
// ordered matcher list instead of inline scan logic.
type Matcher func(cands []ButtonCandidate) *ButtonCandidate

// MatchExactID selects the candidate whose element id equals id.
func MatchExactID(id string) Matcher {
	return func(cands []ButtonCandidate) *ButtonCandidate {
		for i := range cands {
			if cands[i].ID == id {
				return &cands[i]
			}
		}
		return nil
	}
}

// MatchLastInDocument selects the candidate latest in document order.
// This is the modal-confirm convention: the confirm button is appended
// after the page's own publish button.
func MatchLastInDocument() Matcher {
	return func(cands []ButtonCandidate) *ButtonCandidate {
		best := -1
		for i := range cands {
			if best < 0 || cands[i].Index > cands[best].Index {
				best = i
			}
		}
		if best < 0 {
			return nil
		}
		return &cands[best]
	}
}

// MatchMaxY selects the candidate lowest on the page.
func MatchMaxY() Matcher {
	return func(cands []ButtonCandidate) *ButtonCandidate {
		best := -1
		for i := range cands {
			if best < 0 || cands[i].Y > cands[best].Y {
				best = i
			}
		}
		if best < 0 {
			return nil
		}
		return &cands[best]
	}
}

// pickButton filters candidates by case-insensitive text containment and
// runs the matchers in priority order, returning the first hit.
func pickButton(cands []ButtonCandidate, text string, matchers ...Matcher) (ButtonCandidate, bool) {
	var filtered []ButtonCandidate
	needle := strings.ToLower(text)
	for _, c := range cands {
		if strings.Contains(strings.ToLower(c.Text), needle) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return ButtonCandidate{}, false
	}
	for _, m := range matchers {
		if c := m(filtered); c != nil {
			return *c, true
		}
	}
	return filtered[0], true
}
