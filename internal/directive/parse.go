// Package directive extracts the UI command an agent embeds in its reply
// text. Agents emit a JSON object with an "action" key somewhere in their
// prose, sometimes wrapped in a code fence and sometimes with a missing
// closing brace.
package directive

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/soyeahso/advisor/internal/domain"
)

var (
	jsonFence  = regexp.MustCompile("(?i)```json\\s*")
	plainFence = regexp.MustCompile("```\\s*")
	// Greedy: from the first brace to the last one, as long as an
	// upper-snake action key sits in between.
	directiveObject = regexp.MustCompile(`(?s)\{.*"action"\s*:\s*"[A-Z_]+".*\}`)
)

// Catalog resolves product ids to authoritative records.
type Catalog interface {
	Lookup(id string) (domain.Product, bool)
}

// Result is the outcome of parsing one agent reply.
type Result struct {
	Directive *domain.UIDirective
	CleanText string
}

// Parse splits raw agent text into display text and an optional directive.
// It never fails: text without a usable directive yields a nil Directive
// and the fence-stripped text. A nil catalog leaves products untouched.
func Parse(raw string, cat Catalog) Result {
	text := sanitize(raw)

	loc := directiveObject.FindStringIndex(text)
	if loc == nil {
		return Result{CleanText: text}
	}
	obj := text[loc[0]:loc[1]]

	d, ok := decode(obj, cat)
	if !ok {
		return Result{CleanText: text}
	}

	return Result{
		Directive: d,
		CleanText: strings.TrimSpace(text[:loc[0]] + text[loc[1]:]),
	}
}

func sanitize(s string) string {
	s = jsonFence.ReplaceAllString(s, "")
	s = plainFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// envelope is the part of a directive whose shape decides whether it is
// one at all. The payload is decoded separately and leniently.
type envelope struct {
	Action  domain.UIAction `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// decode tries a strict parse of the envelope, then one retry with the
// missing closing braces appended. Nothing else is repaired.
func decode(obj string, cat Catalog) (*domain.UIDirective, bool) {
	env, err := decodeEnvelope(obj)
	if err != nil {
		deficit := strings.Count(obj, "{") - strings.Count(obj, "}")
		if deficit <= 0 {
			return nil, false
		}
		if env, err = decodeEnvelope(obj + strings.Repeat("}", deficit)); err != nil {
			return nil, false
		}
	}
	if env.Action == "" {
		return nil, false
	}
	return &domain.UIDirective{Action: env.Action, Payload: decodePayload(env.Payload, cat)}, true
}

func decodeEnvelope(s string) (envelope, error) {
	var env envelope
	err := json.Unmarshal([]byte(s), &env)
	return env, err
}
