package elements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ibeckermayer/postbot/internal/browser"
)

// ErrNotFound is returned when no candidate resolves to a live element.
var ErrNotFound = errors.New("element not found")

// NotFoundError names the element that could not be resolved.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Finder runs raw DOM queries. session.Session and the test driver
// implement it.
type Finder interface {
	FindAll(ctx context.Context, by browser.By, selector string) ([]browser.Element, error)
}

// Resolver resolves semantic names against a Finder.
type Resolver struct {
	reg    *Registry
	finder Finder
}

// NewResolver creates a resolver over reg.
func NewResolver(reg *Registry, finder Finder) *Resolver {
	return &Resolver{reg: reg, finder: finder}
}

// Registry returns the underlying registry.
func (r *Resolver) Registry() *Registry {
	return r.reg
}

type lookup struct {
	by  browser.By
	sel string
}

// lookups expands a spec into the ordered list of raw queries.
func lookups(s Spec) []lookup {
	var out []lookup
	if s.ID != "" {
		out = append(out, lookup{by: browser.ByID, sel: s.ID})
	}
	for _, sel := range s.Selectors {
		out = append(out,
			lookup{by: browser.ByClass, sel: sel},
			lookup{by: browser.ByQuery, sel: sel},
		)
	}
	return out
}

func (r *Resolver) query(ctx context.Context, name string, l lookup) []browser.Element {
	found, err := r.finder.FindAll(ctx, l.by, l.sel)
	if err != nil {
		slog.DebugContext(ctx, "element lookup failed", "element", name, "by", l.by, "selector", l.sel, "err", err)
		return nil
	}
	return found
}

// FindOne returns the first live match, trying the id before the
// selector candidates.
func (r *Resolver) FindOne(ctx context.Context, name string) (browser.Element, error) {
	spec, err := r.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	for _, l := range lookups(spec) {
		if found := r.query(ctx, name, l); len(found) > 0 {
			return found[0], nil
		}
	}
	slog.DebugContext(ctx, "element not found", "element", name)
	return nil, &NotFoundError{Name: name}
}

// all aggregates every match across every candidate, without duplicates,
// in lookup order.
func (r *Resolver) all(ctx context.Context, spec Spec) []browser.Element {
	var out []browser.Element
	seen := make(map[string]bool)
	for _, l := range lookups(spec) {
		for _, el := range r.query(ctx, spec.Name, l) {
			if seen[el.Identity()] {
				continue
			}
			seen[el.Identity()] = true
			out = append(out, el)
		}
	}
	return out
}

// FindMany returns every visible match across all candidates.
func (r *Resolver) FindMany(ctx context.Context, name string) ([]browser.Element, error) {
	spec, err := r.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	var visible []browser.Element
	for _, el := range r.all(ctx, spec) {
		if ok, _ := el.Visible(ctx); ok {
			visible = append(visible, el)
		}
	}
	if len(visible) == 0 {
		slog.DebugContext(ctx, "no visible elements", "element", name)
		return nil, &NotFoundError{Name: name}
	}
	return visible, nil
}

type candidate struct {
	el        browser.Element
	visible   bool
	enabled   bool
	textMatch bool
}

// FindClickable picks one element among all matches. Preference order:
//  1. visible, enabled and matching the expected text
//  2. visible and matching the expected text
//  3. visible and enabled, when the element has no expected text
//  4. the first match
func (r *Resolver) FindClickable(ctx context.Context, name string) (browser.Element, error) {
	spec, err := r.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	found := r.all(ctx, spec)
	if len(found) == 0 {
		slog.DebugContext(ctx, "no clickable element", "element", name)
		return nil, &NotFoundError{Name: name}
	}

	cands := make([]candidate, len(found))
	for i, el := range found {
		c := candidate{el: el}
		c.visible, _ = el.Visible(ctx)
		c.enabled, _ = el.Enabled(ctx)
		if spec.Text != "" {
			text, _ := el.Text(ctx)
			c.textMatch = TextMatches(text, spec.Text)
		}
		cands[i] = c
	}

	return pick(cands, spec.Text != "").el, nil
}

func pick(cands []candidate, hasText bool) candidate {
	if hasText {
		for _, c := range cands {
			if c.visible && c.enabled && c.textMatch {
				return c
			}
		}
		for _, c := range cands {
			if c.visible && c.textMatch {
				return c
			}
		}
	} else {
		for _, c := range cands {
			if c.visible && c.enabled {
				return c
			}
		}
	}
	return cands[0]
}

// FindByText returns the first visible match whose text equals label,
// ignoring case and surrounding space.
func (r *Resolver) FindByText(ctx context.Context, name, label string) (browser.Element, error) {
	els, err := r.FindMany(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if text, _ := el.Text(ctx); strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(label)) {
			return el, nil
		}
	}
	return nil, &NotFoundError{Name: name + "[" + label + "]"}
}

// Present reports whether name currently resolves.
func (r *Resolver) Present(ctx context.Context, name string) bool {
	_, err := r.FindOne(ctx, name)
	return err == nil
}

// TextMatches is the case-insensitive substring test used for expected text.
func TextMatches(text, want string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(text)), strings.ToLower(strings.TrimSpace(want)))
}
