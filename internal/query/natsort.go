package query

// NaturalCompare compares two strings in natural order, ignoring case.
// Digit runs compare by numeric value; runs starting with '0' compare
// left-aligned as fractional parts. Leading zeros at the very start of a
// string are skipped, so "01" equals "1". Returns -1, 0 or 1.
func NaturalCompare(a, b string) int {
	ai, bi := skipLeadingZeros(a), skipLeadingZeros(b)
	for {
		for isSpace(at(a, ai)) {
			ai++
		}
		for isSpace(at(b, bi)) {
			bi++
		}

		ca, cb := at(a, ai), at(b, bi)

		if isDigit(ca) && isDigit(cb) {
			var result int
			if ca == '0' || cb == '0' {
				result = compareLeft(a[ai:], b[bi:])
			} else {
				result = compareRight(a[ai:], b[bi:])
			}
			if result != 0 {
				return result
			}
		}

		if ca == 0 && cb == 0 {
			return 0
		}

		ca, cb = upper(ca), upper(cb)
		if ca < cb {
			return -1
		}
		if ca > cb {
			return 1
		}
		ai++
		bi++
	}
}

// skipLeadingZeros returns the index of the first digit of s that is not a
// leading zero followed by another digit
func skipLeadingZeros(s string) int {
	i := 0
	for at(s, i) == '0' && isDigit(at(s, i+1)) {
		i++
	}
	return i
}

// compareRight compares right-aligned digit runs: the longer run wins,
// otherwise the first differing digit decides.
func compareRight(a, b string) int {
	bias := 0
	for i := 0; ; i++ {
		ca, cb := at(a, i), at(b, i)
		switch {
		case !isDigit(ca) && !isDigit(cb):
			return bias
		case !isDigit(ca):
			return -1
		case !isDigit(cb):
			return 1
		case ca < cb:
			if bias == 0 {
				bias = -1
			}
		case ca > cb:
			if bias == 0 {
				bias = 1
			}
		}
	}
}

// compareLeft compares left-aligned digit runs: the first difference wins
func compareLeft(a, b string) int {
	for i := 0; ; i++ {
		ca, cb := at(a, i), at(b, i)
		switch {
		case !isDigit(ca) && !isDigit(cb):
			return 0
		case !isDigit(ca):
			return -1
		case !isDigit(cb):
			return 1
		case ca < cb:
			return -1
		case ca > cb:
			return 1
		}
	}
}

func at(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
