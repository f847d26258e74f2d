package lowering

import "github.com/sqlmongo/translator/ast"

// scope tracks which table-qualifiers a SELECT being lowered owns directly
// (its FROM table and its JOIN aliases), and links to the scope of any
// enclosing query so a Column reference can be classified as local or
// correlated. Only one level of correlation is resolved automatically;
// anything deeper is reported as CorrelationEscapes rather than guessed,
// per the translator's error handling design.
type scope struct {
	baseAlias   string
	baseName    string
	joinAliases map[string]bool
	outer       *scope
}

func newScope(baseName, baseAlias string) *scope {
	return &scope{baseName: baseName, baseAlias: baseAlias, joinAliases: map[string]bool{}}
}

func (s *scope) owns(qualifier string) bool {
	if qualifier == "" {
		return true
	}
	if qualifier == s.baseAlias || qualifier == s.baseName {
		return true
	}
	return s.joinAliases[qualifier]
}

// fieldPath resolves id to a dotted Mongo field path relative to this
// scope's document shape: unqualified and base-qualified references are
// top-level fields; join-qualified references are embedded under their
// alias.
func (s *scope) fieldPath(id ast.Identifier) string {
	if id.Qualifier == "" || id.Qualifier == s.baseAlias || id.Qualifier == s.baseName {
		return id.Name
	}
	return id.Qualifier + "." + id.Name
}
