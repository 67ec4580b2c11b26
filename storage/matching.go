package storage

// MatchPattern reports whether key matches a Redis glob pattern.
//
// Supported syntax:
//
//	*      any sequence of bytes, including none
//	?      exactly one byte
//	[abc]  one byte from the set; ranges such as [a-z] and negation [^a]
//	\x     the literal byte x
//
// Matching is byte-wise and backtracks only to the most recent star, so it
// runs in O(len(key) * len(pattern)) in the worst case.
func MatchPattern(key, pattern string) bool {
	p, s := 0, 0
	starP, starS := -1, 0

	for s < len(key) {
		if p < len(pattern) {
			switch pattern[p] {
			case '*':
				for p < len(pattern) && pattern[p] == '*' {
					p++
				}
				if p == len(pattern) {
					return true
				}
				starP, starS = p, s
				continue
			case '?':
				p++
				s++
				continue
			case '[':
				if next, ok := matchClass(pattern, p, key[s]); ok {
					p = next
					s++
					continue
				}
			case '\\':
				if p+1 < len(pattern) && pattern[p+1] == key[s] {
					p += 2
					s++
					continue
				}
				if p+1 == len(pattern) && key[s] == '\\' {
					p++
					s++
					continue
				}
			default:
				if pattern[p] == key[s] {
					p++
					s++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		starS++
		p, s = starP, starS
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// matchClass matches c against the bracket expression starting at
// pattern[p] == '['. It returns the index just past the closing bracket.
func matchClass(pattern string, p int, c byte) (int, bool) {
	p++
	negate := p < len(pattern) && pattern[p] == '^'
	if negate {
		p++
	}

	matched := false
	for p < len(pattern) && pattern[p] != ']' {
		switch {
		case pattern[p] == '\\' && p+1 < len(pattern):
			p++
			if pattern[p] == c {
				matched = true
			}
			p++
		case p+2 < len(pattern) && pattern[p+1] == '-' && pattern[p+2] != ']':
			lo, hi := pattern[p], pattern[p+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			p += 3
		default:
			if pattern[p] == c {
				matched = true
			}
			p++
		}
	}
	if p < len(pattern) {
		p++ // closing bracket
	}
	return p, matched != negate
}
