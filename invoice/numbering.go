package invoice

import (
	"fmt"
	"strconv"
	"strings"
)

// NumberPrefix returns the yearly invoice number prefix, e.g. "2025-".
func NumberPrefix(year int) string {
	return fmt.Sprintf("%d-", year)
}

// NextNumber returns the next free "YYYY-NNNN" number given the numbers
// already issued in that year. Malformed numbers are ignored.
func NextNumber(year int, existing []string) string {
	prefix := NumberPrefix(year)
	highest := 0
	for _, number := range existing {
		suffix, ok := strings.CutPrefix(number, prefix)
		if !ok {
			continue
		}
		seq, err := strconv.Atoi(suffix)
		if err != nil || seq < 0 {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return fmt.Sprintf("%s%04d", prefix, highest+1)
}
