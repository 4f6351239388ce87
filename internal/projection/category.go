package projection

import (
	"strings"
)

// Category is the closed set of backend type families the projector knows
// how to decode. Anything else is CategoryUnknown.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryInteger
	CategoryFloat
	CategoryText
)

func (c Category) String() string {
	switch c {
	case CategoryInteger:
		return "integer"
	case CategoryFloat:
		return "float"
	case CategoryText:
		return "text"
	default:
		return "unknown"
	}
}

var categories = map[string]Category{
	// mysql, sqlserver, hana, postgres integer types
	"TINYINT":   CategoryInteger,
	"SMALLINT":  CategoryInteger,
	"MEDIUMINT": CategoryInteger,
	"INT":       CategoryInteger,
	"INTEGER":   CategoryInteger,
	"BIGINT":    CategoryInteger,
	"INT2":      CategoryInteger,
	"INT4":      CategoryInteger,
	"INT8":      CategoryInteger,
	"SERIAL":    CategoryInteger,
	"BIGSERIAL": CategoryInteger,
	"YEAR":      CategoryInteger,

	"FLOAT":        CategoryFloat,
	"DOUBLE":       CategoryFloat,
	"REAL":         CategoryFloat,
	"DECIMAL":      CategoryFloat,
	"NUMERIC":      CategoryFloat,
	"MONEY":        CategoryFloat,
	"SMALLMONEY":   CategoryFloat,
	"FLOAT4":       CategoryFloat,
	"FLOAT8":       CategoryFloat,
	"SMALLDECIMAL": CategoryFloat,

	"CHAR":             CategoryText,
	"VARCHAR":          CategoryText,
	"NCHAR":            CategoryText,
	"NVARCHAR":         CategoryText,
	"TEXT":             CategoryText,
	"TINYTEXT":         CategoryText,
	"MEDIUMTEXT":       CategoryText,
	"LONGTEXT":         CategoryText,
	"NTEXT":            CategoryText,
	"BPCHAR":           CategoryText,
	"NAME":             CategoryText,
	"ALPHANUM":         CategoryText,
	"SHORTTEXT":        CategoryText,
	"STRING":           CategoryText,
	"ENUM":             CategoryText,
	"SET":              CategoryText,
	"UUID":             CategoryText,
	"UNIQUEIDENTIFIER": CategoryText,
	"JSON":             CategoryText,
	"JSONB":            CategoryText,
	"CITEXT":           CategoryText,
}

// Categorize maps a runtime-reported type name onto a Category.
func Categorize(typeName string) Category {
	return categories[normalizeTypeName(typeName)]
}

// normalizeTypeName upper-cases the name, drops a mysql "UNSIGNED " prefix
// and a trailing "(n)" / "(p,s)" length.
func normalizeTypeName(typeName string) string {
	name := strings.ToUpper(strings.TrimSpace(typeName))
	name = strings.TrimPrefix(name, "UNSIGNED ")
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name
}
