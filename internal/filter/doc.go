// Package filter implements the boolean row filters attached to sync
// properties.
//
// # Grammar
//
//	or      := and ( '|' and )*
//	and     := unary ( '&' unary )*
//	unary   := '!' unary | '(' or ')' | compare
//	compare := column ( '=' | '!=' ) value
//	value   := bare text up to one of & | ( )   or   "double quoted"
//
// Example: host=www*&!(address=127.*|address6=::1)
//
// # Matching
//
//   - '*' matches any run of characters, everything else is literal
//   - A column absent from the row makes its comparison false, for both
//     '=' and '!='
//   - A list-valued column matches '=' if any element matches, '!=' if none does
//   - A dotted column (vars.os) that is not itself a row column is looked up
//     through nested dicts
//
// Filters are parsed once at rule configuration time; a malformed filter is
// reported as a *SyntaxError before any row is evaluated.
package filter
