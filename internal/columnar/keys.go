package columnar

import "strings"

// CompareKeys orders unit identifiers. Two all-digit keys compare as
// decimal integers so that statistics stored as integers and ids given
// as strings agree; anything else compares bytewise.
func CompareKeys(a, b string) int {
	if digits(a) && digits(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
