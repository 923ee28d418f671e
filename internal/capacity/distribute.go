package capacity

import "fmt"

// Distribute splits total evenly over n racks. The remainder goes one unit at
// a time to the first racks in caller order, so {100, 3} is always {34, 33, 33}.
func Distribute(total, n int) []int {
	if n <= 0 {
		return nil
	}
	shares := make([]int, n)
	base, rem := total/n, total%n
	for i := range shares {
		shares[i] = base
		if i < rem {
			shares[i]++
		}
	}
	return shares
}

func formatShortfall(rackID string, free, requested int) string {
	return fmt.Sprintf("rack %s has %d units available, %d requested", rackID, free, requested)
}
