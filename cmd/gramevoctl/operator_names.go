package main

import "strings"

// normalizeOperatorName maps mutation type names such as ADDITION or
// GRAMMATICAL onto registered operator names.
func normalizeOperatorName(name string) string {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "GA", "GA_MUTATION":
		return "ga_mutation"
	case "ADDITION":
		return "ga_addition"
	case "REPLACE":
		return "ga_replace"
	case "REMOVAL":
		return "ga_removal"
	case "DSGE", "DSGE_MUTATION":
		return "dsge_mutation"
	case "GRAMMATICAL":
		return "dsge_grammatical"
	case "INTEGER":
		return "dsge_integer"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}
