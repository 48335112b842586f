package mot

import "math"

// solveAssignment finds the minimum total cost assignment for a square cost matrix
// with Kuhn-Munkres algorithm (potentials form, O(n^3)).
// Returns: assignment[row] = column
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return []int{}
	}
	const inf = math.MaxFloat64 / 2

	// Indices are 1-based, column 0 is virtual
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	owner := make([]int, n+1)
	way := make([]int, n+1)
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		owner[0] = i
		j0 := 0
		for j := 0; j <= n; j++ {
			minv[j] = inf
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := owner[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[owner[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if owner[j0] == 0 {
				break
			}
		}
		// Augment along the alternating path
		for j0 != 0 {
			prev := way[j0]
			owner[j0] = owner[prev]
			j0 = prev
		}
	}

	assignment := make([]int, n)
	for j := 1; j <= n; j++ {
		if owner[j] > 0 {
			assignment[owner[j]-1] = j - 1
		}
	}
	return assignment
}
