// Package mapper binds detected CSV headers to the canonical import
// fields. Exact synonym matches are tried first, then a bounded fuzzy pass
// catches misspelled headers like "Transacton Date".
package mapper

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Field is a canonical import field raw columns are mapped onto.
type Field string

// The fixed canonical field vocabulary.
const (
	FieldDate     Field = "date"
	FieldAmount   Field = "amount"
	FieldDebit    Field = "debit"
	FieldCredit   Field = "credit"
	FieldType     Field = "type"
	FieldNote     Field = "note"
	FieldCategory Field = "category"
	FieldCurrency Field = "currency"
)

// Fields lists every canonical field in a stable order.
var Fields = []Field{
	FieldDate, FieldAmount, FieldDebit, FieldCredit,
	FieldType, FieldNote, FieldCategory, FieldCurrency,
}

// AmountMode selects how the normalizer derives an amount from a row.
type AmountMode string

const (
	// AmountModeSingle reads one amount column and infers the sign.
	AmountModeSingle AmountMode = "single"
	// AmountModeSplit reads separate debit and credit columns.
	AmountModeSplit AmountMode = "splitColumns"
)

// Mapping maps canonical fields to header names. An absent key means the
// field is unmapped.
type Mapping map[Field]string

// ImportReady reports whether the mapping can drive an import: date must
// be mapped, plus either amount or at least one of debit/credit.
func (m Mapping) ImportReady() bool {
	if m[FieldDate] == "" {
		return false
	}
	return m[FieldAmount] != "" || m[FieldDebit] != "" || m[FieldCredit] != ""
}

// Mode returns the amount mode implied by the mapping: split columns when
// amount is unmapped but a debit or credit column is bound.
func (m Mapping) Mode() AmountMode {
	if m[FieldAmount] == "" && (m[FieldDebit] != "" || m[FieldCredit] != "") {
		return AmountModeSplit
	}
	return AmountModeSingle
}

// synonyms maps each canonical field to the normalized header names that
// should bind to it.
var synonyms = map[Field][]string{
	FieldDate:     {"date", "transactiondate", "posteddate"},
	FieldAmount:   {"amount", "amt", "transactionamount"},
	FieldDebit:    {"debit", "withdrawal"},
	FieldCredit:   {"credit", "deposit"},
	FieldType:     {"type", "drcr", "transactiontype"},
	FieldNote:     {"description", "memo", "details", "note"},
	FieldCategory: {"category"},
	FieldCurrency: {"currency", "currencycode", "cur"},
}

// maxFuzzyDistance bounds the Levenshtein distance accepted by the fuzzy
// pass. Short normalized headers are excluded entirely to keep "cur" from
// matching "cr" and friends.
const (
	maxFuzzyDistance = 2
	minFuzzyLen      = 5
)

// AutoMap produces a best-guess mapping for the given headers. For each
// canonical field the first header (in original order) whose normalized
// form is in the field's synonym set wins; fields that miss every synonym
// get a fuzzy second chance.
func AutoMap(headers []string) Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	mapping := Mapping{}
	for _, field := range Fields {
		if header := exactMatch(headers, normalized, synonyms[field]); header != "" {
			mapping[field] = header
		}
	}
	claimed := make(map[string]bool, len(mapping))
	for _, header := range mapping {
		claimed[header] = true
	}
	for _, field := range Fields {
		if mapping[field] != "" {
			continue
		}
		if header := fuzzyMatch(headers, normalized, synonyms[field], claimed); header != "" {
			mapping[field] = header
			claimed[header] = true
		}
	}
	return mapping
}

// NormalizeHeader lowercases a header and strips all non-alphanumerics.
func NormalizeHeader(header string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, header)
}

func exactMatch(headers, normalized, candidates []string) string {
	for i, norm := range normalized {
		for _, candidate := range candidates {
			if norm == candidate {
				return headers[i]
			}
		}
	}
	return ""
}

// fuzzyMatch skips headers an exact match already claimed, so a fuzzy
// candidate never steals a column from its rightful field.
func fuzzyMatch(headers, normalized, candidates []string, claimed map[string]bool) string {
	for i, norm := range normalized {
		if len(norm) < minFuzzyLen || claimed[headers[i]] {
			continue
		}
		for _, candidate := range candidates {
			if len(candidate) < minFuzzyLen {
				continue
			}
			if fuzzy.LevenshteinDistance(norm, candidate) <= maxFuzzyDistance {
				return headers[i]
			}
		}
	}
	return ""
}
