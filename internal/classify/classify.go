package classify

// DefaultDateThreshold is the minimum share of date-parseable values for a
// column to classify as a date.
const DefaultDateThreshold = 0.8

// IsBoolean reports whether every distinct value is in the vocabulary.
// One unknown token disqualifies the column. Zero values never qualify.
func IsBoolean(values []string, vocab Vocabulary) bool {
	if len(values) == 0 {
		return false
	}
	seen := make(map[string]struct{}, 8)
	for _, v := range values {
		k := fold(v)
		if _, done := seen[k]; done {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := vocab.Lookup(k); !ok {
			return false
		}
	}
	return true
}

// IsInteger reports whether every value parses as a base-10 integer.
func IsInteger(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if _, ok := ParseInt(v); !ok {
			return false
		}
	}
	return true
}

// IsFloat reports whether every value parses as a decimal number.
func IsFloat(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if _, ok := ParseFloat(v); !ok {
			return false
		}
	}
	return true
}

// IsDate reports whether at least threshold of the candidate values parse as
// dates. Blank values and null sentinels are not candidates. A threshold <= 0
// falls back to DefaultDateThreshold.
func IsDate(values []string, order DateOrder, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultDateThreshold
	}
	var candidates, parsed int
	for _, v := range values {
		if IsNullSentinel(v) {
			continue
		}
		candidates++
		if _, ok := ParseDate(v, order); ok {
			parsed++
		}
	}
	if candidates == 0 {
		return false
	}
	return float64(parsed)/float64(candidates) >= threshold
}
