package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"
)

// Facet kinds recognised in the search box, in extraction order.
const (
	KindDomain    = "domain"
	KindAuthor    = "author"
	KindValidated = "validated"
)

// Tri is the validated filter tri-state.
type Tri int

const (
	TriUnset Tri = iota
	TriTrue
	TriFalse
)

// Query is the structured form of one search string. Empty ID slices mean
// "no constraint", never "exclude everything".
type Query struct {
	RawText      string
	DomainIDs    []int
	AuthorIDs    []int
	Validated    Tri
	ResidualText string
	// Misses lists facet names that resolved to no directory entry (or whose
	// lookup failed). They still contribute no constraint; the UI may use
	// them to tell the user the query was silently broadened.
	Misses []string
}

// Resolver looks up directory entries by exact name.
type Resolver interface {
	ResolveDomains(ctx context.Context, name string) ([]int, error)
	ResolveAuthors(ctx context.Context, name string) ([]int, error)
}

// ExtractFacet finds every kind:value token in text and returns the values
// plus the text with the matched spans removed. A value is either a
// double-quoted string, or, when no closing quote exists, the run of
// non-whitespace characters starting at the same position (quote included).
// A bare kind: with no value is left in the text untouched.
func ExtractFacet(kind, text string) (values []string, remainder string) {
	prefix := kind + ":"
	var out strings.Builder
	i := 0
	for i < len(text) {
		j := strings.Index(text[i:], prefix)
		if j < 0 {
			out.WriteString(text[i:])
			break
		}
		j += i
		out.WriteString(text[i:j])
		k := j + len(prefix)

		if k < len(text) && text[k] == '"' {
			if rel := strings.IndexByte(text[k+1:], '"'); rel >= 0 {
				values = append(values, text[k+1:k+1+rel])
				i = k + 1 + rel + 1
				continue
			}
		}

		end := k + nonSpaceRun(text[k:])
		if end == k {
			// kind: followed by whitespace or end of input is not a token.
			out.WriteString(prefix)
			i = k
			continue
		}
		values = append(values, text[k:end])
		i = end
	}
	return values, out.String()
}

func nonSpaceRun(s string) int {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return i
	}
	return len(s)
}

// Parse turns one search string into a Query. The three facet kinds are
// extracted in a fixed order, each pass operating on the previous pass's
// remainder, so a quoted author name can never be re-read as domain text.
// Parse never fails: unknown names and failed lookups become misses, and
// unrecognised validated values are stripped with no effect.
func Parse(ctx context.Context, raw string, resolver Resolver) Query {
	q := Query{RawText: raw}

	domainNames, rest := ExtractFacet(KindDomain, raw)
	authorNames, rest := ExtractFacet(KindAuthor, rest)
	validatedValues, rest := ExtractFacet(KindValidated, rest)

	var misses []string
	q.DomainIDs, misses = resolveNames(ctx, domainNames, resolver.ResolveDomains, misses)
	q.AuthorIDs, misses = resolveNames(ctx, authorNames, resolver.ResolveAuthors, misses)
	q.Misses = misses

	for _, v := range validatedValues {
		// Only the exact literals count; the last occurrence wins.
		switch v {
		case "true":
			q.Validated = TriTrue
		case "false":
			q.Validated = TriFalse
		}
	}

	q.ResidualText = strings.TrimSpace(rest)
	return q
}

func resolveNames(ctx context.Context, names []string, resolve func(context.Context, string) ([]int, error), misses []string) ([]int, []string) {
	set := make(map[int]struct{})
	for _, name := range names {
		ids, err := resolve(ctx, name)
		if err != nil {
			slog.Warn("facet name lookup failed", "name", name, "error", err)
			misses = append(misses, name)
			continue
		}
		if len(ids) == 0 {
			misses = append(misses, name)
			continue
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, misses
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, misses
}
