package key

import (
	"fmt"
	"strings"
)

// Key kinds used as the second segment of generated keys.
const (
	KindID        = "id"
	KindCustom    = "custom"
	KindComposite = "composite"
	KindQuery     = "query"
	KindFind      = "find"
	KindRelation  = "relation"
	KindPage      = "page"
	KindCount     = "count"
	KindAggregate = "aggregate"
)

// compositePairs are two-field identity patterns scanned in order when an
// entity has neither declared key fields nor an "id" field.
var compositePairs = [][2]string{
	{"tenantId", "code"},
	{"userId", "itemId"},
	{"parentId", "name"},
}

// Query is the canonical representation of a query for key generation:
// the predicate text plus its parameter map.
type Query struct {
	// Alias is the entity alias the query targets. Empty defaults to "entity".
	Alias string

	// Predicate is the query predicate text (e.g. a WHERE clause).
	Predicate string

	// Params are the named query parameters.
	Params map[string]any
}

// Generator produces deterministic cache keys and invalidation patterns.
//
// Contract:
// - Determinism: same logical inputs produce the same key, regardless of
//   map iteration order.
// - Concurrency: safe for concurrent use (Generator is stateless).
type Generator struct{}

// NewGenerator creates a new key generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// ForEntity generates the canonical key for a single entity instance.
//
// Identity sources, in priority order:
//  1. keyFields, if every field is present and non-empty ->
//     <type>:custom:<v1>_<v2>
//  2. an "id" field -> <type>:id:<id>
//  3. a known two-field composite pattern -> <type>:composite:<v1>_<v2>
//
// Returns ErrNoIdentity when none apply; callers must bypass caching for
// that instance rather than fail.
func (g *Generator) ForEntity(typeName string, entity map[string]any, keyFields []string) (string, error) {
	if typeName == "" {
		return "", ErrEmptyType
	}

	if len(keyFields) > 0 {
		values := make([]string, 0, len(keyFields))
		for _, f := range keyFields {
			v, ok := fieldValue(entity, f)
			if !ok {
				values = nil
				break
			}
			values = append(values, v)
		}
		if values != nil {
			return BuildKey(typeName, KindCustom, strings.Join(values, "_")), nil
		}
	}

	if id, ok := fieldValue(entity, "id"); ok {
		return BuildKey(typeName, KindID, id), nil
	}

	for _, pair := range compositePairs {
		a, okA := fieldValue(entity, pair[0])
		b, okB := fieldValue(entity, pair[1])
		if okA && okB {
			return BuildKey(typeName, KindComposite, a+"_"+b), nil
		}
	}

	return "", fmt.Errorf("%w: type %s", ErrNoIdentity, typeName)
}

// ForQuery generates a key for an arbitrary query from its canonical shape.
// Format: <alias>:query:<fingerprint>
func (g *Generator) ForQuery(q Query) (string, error) {
	alias := q.Alias
	if alias == "" {
		alias = "entity"
	}

	fp, err := Fingerprint(map[string]any{
		"predicate": q.Predicate,
		"params":    q.Params,
	})
	if err != nil {
		return "", err
	}

	return BuildKey(alias, KindQuery, fp), nil
}

// ForFind generates a key for a find-many query. Nil or empty options yield
// the literal "all" instead of a hash.
func (g *Generator) ForFind(typeName string, opts map[string]any) (string, error) {
	return g.optionsKey(typeName, KindFind, opts)
}

// ForCount generates a key for a count query. Nil or empty options yield
// the literal "all".
func (g *Generator) ForCount(typeName string, opts map[string]any) (string, error) {
	return g.optionsKey(typeName, KindCount, opts)
}

// ForPagination generates a key for a paginated query.
// Format: <type>:page:<page>_<size>[:<fingerprint>]
func (g *Generator) ForPagination(typeName string, page, size int, opts map[string]any) (string, error) {
	if typeName == "" {
		return "", ErrEmptyType
	}

	base := BuildKey(typeName, KindPage, fmt.Sprintf("%d_%d", page, size))
	if len(opts) == 0 {
		return base, nil
	}

	fp, err := Fingerprint(opts)
	if err != nil {
		return "", err
	}
	return BuildKey(base, fp), nil
}

// ForAggregate generates a key for an aggregate query (sum, avg, min, max).
// Format: <type>:aggregate:<op>_<field>:<fingerprint-or-"all">
func (g *Generator) ForAggregate(typeName, op, field string, opts map[string]any) (string, error) {
	if typeName == "" {
		return "", ErrEmptyType
	}

	base := BuildKey(typeName, KindAggregate, op+"_"+field)
	if len(opts) == 0 {
		return BuildKey(base, "all"), nil
	}

	fp, err := Fingerprint(opts)
	if err != nil {
		return "", err
	}
	return BuildKey(base, fp), nil
}

// ForRelation generates the key for a cached relation of an entity.
// Format: <entity key>:relation:<relationName>
func (g *Generator) ForRelation(typeName string, entity map[string]any, keyFields []string, relation string) (string, error) {
	base, err := g.ForEntity(typeName, entity, keyFields)
	if err != nil {
		return "", err
	}
	return BuildKey(base, KindRelation, relation), nil
}

// Pattern returns a glob matching every key of a type, optionally narrowed
// to one kind. Used exclusively for bulk invalidation, never for lookup.
// Pattern("User") -> "User:*"; Pattern("User", "query") -> "User:query:*".
func (g *Generator) Pattern(typeName string, kinds ...string) string {
	parts := make([]any, 0, len(kinds)+2)
	parts = append(parts, typeName)
	for _, k := range kinds {
		parts = append(parts, k)
	}
	parts = append(parts, "*")
	return BuildKey(parts...)
}

func (g *Generator) optionsKey(typeName, kind string, opts map[string]any) (string, error) {
	if typeName == "" {
		return "", ErrEmptyType
	}
	if len(opts) == 0 {
		return BuildKey(typeName, kind, "all"), nil
	}

	fp, err := Fingerprint(opts)
	if err != nil {
		return "", err
	}
	return BuildKey(typeName, kind, fp), nil
}

// BuildKey joins parts with ":", silently dropping nil segments. Dropped
// segments shift later ones left, so callers must not parse keys
// positionally after passing a nil.
func BuildKey(parts ...any) string {
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == nil {
			continue
		}
		segments = append(segments, fmt.Sprintf("%v", p))
	}
	return strings.Join(segments, ":")
}

// fieldValue extracts a field as a string. A field counts as present only
// when it exists, is non-nil, and does not render to the empty string.
func fieldValue(entity map[string]any, field string) (string, bool) {
	v, ok := entity[field]
	if !ok || v == nil {
		return "", false
	}
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return "", false
	}
	return s, true
}
