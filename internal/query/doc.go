// Package query implements the rankings search language.
//
// Grammar:
//
//	expr    = or
//	or      = and { ("OR" | "||") and }
//	and     = unary { ["AND" | "&&"] unary }
//	unary   = ("NOT" | "!" | "-") unary | primary
//	primary = "(" expr ")" | term
//	term    = [field ":"] value
//
// Values are bare words or double-quoted strings; a backslash escapes the next
// character in either form. Bare terms match any text field. Numeric fields
// accept comparison prefixes: station:"metro center" num_breaks:>=3.
package query
