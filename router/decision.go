package router

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hupe1980/agentroute/core"
)

// ClarifyMarker is the generator answer that asks for clarification. Text
// after the marker, optionally separated by ":" or "-", is used as the
// clarification message.
const ClarifyMarker = "CLARIFY"

// Clarification reasons, also used as the metrics label.
const (
	ReasonRequested      = "requested"
	ReasonUnknownHandler = "unknown_handler"
	ReasonAmbiguous      = "ambiguous"
)

// Decision is the outcome of classifying one request. Exactly one of
// Handler or Reason is set.
type Decision struct {
	// Handler is the selected handler name.
	Handler string
	// Reason explains why clarification is needed.
	Reason string
	// Message is a clarification text supplied by the generator, if any.
	Message string
	// Cause wraps core.ErrNotFound or core.ErrClassificationAmbiguous.
	Cause error
}

// NeedsClarification reports whether no handler was selected.
func (d Decision) NeedsClarification() bool { return d.Handler == "" }

// parseDecision maps raw generator output onto a Decision. lookup resolves
// a candidate to the registered handler name.
func parseDecision(raw string, lookup func(name string) (string, bool)) Decision {
	out := normalize(raw)

	if out == "" {
		return ambiguous(raw)
	}

	if name, ok := lookup(out); ok {
		return Decision{Handler: name}
	}

	if strings.HasPrefix(strings.ToUpper(out), ClarifyMarker) {
		return Decision{Reason: ReasonRequested, Message: clarifyMessage(raw)}
	}

	// A single identifier-like token is read as an attempt to name a handler.
	if isIdentifier(out) {
		return Decision{
			Reason: ReasonUnknownHandler,
			Cause:  fmt.Errorf("handler %q: %w", out, core.ErrNotFound),
		}
	}

	return ambiguous(raw)
}

// clarifyMessage returns the text following the marker, with an optional
// ":" or "-" separator removed.
func clarifyMessage(raw string) string {
	s := strings.TrimLeft(raw, decoration)
	if len(s) < len(ClarifyMarker) {
		return ""
	}
	s = strings.TrimLeft(s[len(ClarifyMarker):], "`'\"*")
	return strings.TrimSpace(strings.TrimLeft(s, " \t\r\n:-."))
}

func ambiguous(raw string) Decision {
	return Decision{
		Reason: ReasonAmbiguous,
		Cause:  fmt.Errorf("%w: %q", core.ErrClassificationAmbiguous, raw),
	}
}

// decoration is what generators tend to wrap around a bare name.
const decoration = " \t\r\n`'\"*.!?,;:"

func normalize(s string) string {
	return strings.Trim(s, decoration)
}

func isIdentifier(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return s != ""
}
