// Package extract turns a rendered detail page into a Place using ordered
// fallback lookups per field.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/maps-cli/internal/browser"
)

// Strategy looks up one raw value on a page. An empty result means no match.
type Strategy interface {
	Lookup(ctx context.Context, page browser.Page) (string, error)
	String() string
}

// Text returns a Strategy reading the text of the first node matching selector.
func Text(selector string) Strategy {
	return textStrategy{selector: selector}
}

// Attr returns a Strategy reading attribute attr of the first node matching selector.
func Attr(selector, attr string) Strategy {
	return attrStrategy{selector: selector, attr: attr}
}

// Strategy converts the configured lookup into a Strategy.
func (l Lookup) Strategy() Strategy {
	if l.Attr != "" {
		return Attr(l.Selector, l.Attr)
	}
	return Text(l.Selector)
}

type textStrategy struct {
	selector string
}

func (s textStrategy) Lookup(ctx context.Context, page browser.Page) (string, error) {
	elems, err := page.Locate(ctx, s.selector)
	if err != nil || len(elems) == 0 {
		return "", err
	}
	return elems[0].Text(), nil
}

func (s textStrategy) String() string { return "text(" + s.selector + ")" }

type attrStrategy struct {
	selector string
	attr     string
}

func (s attrStrategy) Lookup(ctx context.Context, page browser.Page) (string, error) {
	elems, err := page.Locate(ctx, s.selector)
	if err != nil || len(elems) == 0 {
		return "", err
	}
	return elems[0].Attribute(s.attr), nil
}

func (s attrStrategy) String() string { return "attr(" + s.selector + "@" + s.attr + ")" }

// Chain tries strategies in order and keeps the first non-empty value.
type Chain struct {
	Field      Field
	Strategies []Strategy
}

// NewChain builds a Chain for field from configured lookups.
func NewChain(field Field, lookups []Lookup) Chain {
	strategies := make([]Strategy, 0, len(lookups))
	for _, l := range lookups {
		strategies = append(strategies, l.Strategy())
	}
	return Chain{Field: field, Strategies: strategies}
}

// Extract returns the first non-empty strategy result, or "" when every
// strategy misses. Strategy faults count as misses.
func (c Chain) Extract(ctx context.Context, page browser.Page) string {
	for _, s := range c.Strategies {
		v, err := s.Lookup(ctx, page)
		if err != nil {
			zap.L().Debug("extract: strategy failed, trying next",
				zap.String("field", string(c.Field)),
				zap.Stringer("strategy", s),
				zap.Error(err),
			)
			continue
		}
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}

// clean normalizes to NFC and collapses runs of whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
