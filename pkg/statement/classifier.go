package statement

import "strings"

// Class is the execution category of a single statement, derived from
// its leading keyword.
type Class int

const (
	ClassUnknown Class = iota
	ClassRowReturning
	ClassRowAffecting
	ClassSchemaDefinition
)

func (c Class) String() string {
	switch c {
	case ClassRowReturning:
		return "row-returning"
	case ClassRowAffecting:
		return "row-affecting"
	case ClassSchemaDefinition:
		return "schema-definition"
	default:
		return "unknown"
	}
}

// baseClasses maps leading keywords common across backends. Dialects
// layer backend-specific forms on top via ClassifyWith.
var baseClasses = map[string]Class{
	"SELECT":   ClassRowReturning,
	"WITH":     ClassRowReturning,
	"SHOW":     ClassRowReturning,
	"EXPLAIN":  ClassRowReturning,
	"VALUES":   ClassRowReturning,
	"TABLE":    ClassRowReturning,
	"DESCRIBE": ClassRowReturning,
	"DESC":     ClassRowReturning,

	"INSERT":  ClassRowAffecting,
	"UPDATE":  ClassRowAffecting,
	"DELETE":  ClassRowAffecting,
	"MERGE":   ClassRowAffecting,
	"REPLACE": ClassRowAffecting,
	"UPSERT":  ClassRowAffecting,

	"CREATE":   ClassSchemaDefinition,
	"DROP":     ClassSchemaDefinition,
	"ALTER":    ClassSchemaDefinition,
	"TRUNCATE": ClassSchemaDefinition,
	"GRANT":    ClassSchemaDefinition,
	"REVOKE":   ClassSchemaDefinition,
	"COMMENT":  ClassSchemaDefinition,
	"RENAME":   ClassSchemaDefinition,
}

// Classify returns the execution category for a statement based on its
// first non-whitespace, non-comment keyword, case-insensitively.
func Classify(s Statement) Class {
	return ClassifyWith(s, nil)
}

// ClassifyWith classifies a statement, consulting backend-specific
// keyword overrides before the common table. Overrides use upper-case
// keywords (e.g. "PRAGMA" for SQLite, "VACUUM" for PostgreSQL).
func ClassifyWith(s Statement, overrides map[string]Class) Class {
	kw := LeadingKeyword(s.Text)
	if kw == "" {
		return ClassUnknown
	}
	if overrides != nil {
		if class, ok := overrides[kw]; ok {
			return class
		}
	}
	if class, ok := baseClasses[kw]; ok {
		return class
	}
	return ClassUnknown
}

// LeadingKeyword returns the first keyword token of a statement in
// upper case, skipping leading whitespace and comments. Returns ""
// when the statement contains no keyword.
func LeadingKeyword(text string) string {
	i, n := 0, len(text)

	for i < n {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < n && text[i+1] == '-':
			for i < n && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && text[i+1] == '*':
			i += 2
			for i+1 < n && !(text[i] == '*' && text[i+1] == '/') {
				i++
			}
			i += 2
		default:
			start := i
			for i < n && (isKeywordChar(text[i])) {
				i++
			}
			if i == start {
				return ""
			}
			return strings.ToUpper(text[start:i])
		}
	}

	return ""
}

func isKeywordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
