package assistant

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/shopspring/decimal"
)

// ParseError reports a model response that could not be trusted as a
// receipt split. Raw holds the offending text.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "could not parse the receipt: " + e.Reason
}

// ShareSuggestion is the model's proposed weight for one person.
type ShareSuggestion struct {
	Name      string  `json:"name"`
	Share     float64 `json:"share"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// ReceiptSplit is a validated receipt parse.
type ReceiptSplit struct {
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	Participants []ShareSuggestion `json:"participants"`
}

// Shares maps participant name to suggested share.
func (r *ReceiptSplit) Shares() map[string]float64 {
	out := make(map[string]float64, len(r.Participants))
	for _, p := range r.Participants {
		out[p.Name] = p.Share
	}
	return out
}

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")
	fencedAny  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)\\n\\s*```")
)

type rawSplit struct {
	TotalAmount  *decimal.Decimal `json:"totalAmount"`
	Participants []struct {
		Name      string   `json:"name"`
		Share     *float64 `json:"share"`
		Reasoning string   `json:"reasoning"`
	} `json:"participants"`
}

// ParseReceiptResponse extracts and validates the structured block from a
// model response. It tries a ```json fence, then any fence, then the
// outermost braces.
func ParseReceiptResponse(text string) (*ReceiptSplit, error) {
	block, ok := extractJSON(text)
	if !ok {
		return nil, &ParseError{Reason: "no JSON object in response", Raw: text}
	}

	var raw rawSplit
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("malformed JSON: %v", err), Raw: text}
	}

	if raw.TotalAmount == nil {
		return nil, &ParseError{Reason: "totalAmount is missing", Raw: text}
	}
	if raw.TotalAmount.Sign() <= 0 {
		return nil, &ParseError{Reason: "totalAmount must be greater than zero", Raw: text}
	}
	if chain.CheckMagnitude("totalAmount", *raw.TotalAmount, 2) != nil {
		return nil, &ParseError{Reason: "totalAmount is out of range", Raw: text}
	}
	if len(raw.Participants) == 0 {
		return nil, &ParseError{Reason: "no participants", Raw: text}
	}

	out := &ReceiptSplit{TotalAmount: *raw.TotalAmount}
	seen := make(map[string]bool, len(raw.Participants))
	for i, p := range raw.Participants {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("participant %d has no name", i), Raw: text}
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, &ParseError{Reason: fmt.Sprintf("participant %q appears twice", name), Raw: text}
		}
		seen[key] = true
		if p.Share == nil {
			return nil, &ParseError{Reason: fmt.Sprintf("participant %q has no share", name), Raw: text}
		}
		if math.IsNaN(*p.Share) || math.IsInf(*p.Share, 0) || *p.Share <= 0 {
			return nil, &ParseError{Reason: fmt.Sprintf("participant %q has an invalid share", name), Raw: text}
		}
		out.Participants = append(out.Participants, ShareSuggestion{
			Name:      name,
			Share:     *p.Share,
			Reasoning: p.Reasoning,
		})
	}
	return out, nil
}

func extractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := fencedAny.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
