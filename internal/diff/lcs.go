// Package diff aligns two sequences of block signatures. It drives both the
// merge of edited HTML into a base document and the block-level diff report.
package diff

// Kind is the type of an edit operation.
type Kind int

const (
	Equal Kind = iota
	Insert
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "+"
	case Delete:
		return "-"
	default:
		return "="
	}
}

// Op is one step of an edit script. A indexes the original sequence and B the
// revised one; the side an operation does not touch is -1.
type Op struct {
	Kind Kind
	A    int
	B    int
	Text string
}

// Compute returns the shortest edit script turning a into b, computed from a
// longest-common-subsequence table. When several scripts are equally short,
// deletions are reported before insertions.
func Compute(a, b []string) []Op {
	n := len(a)
	m := len(b)

	if n == 0 && m == 0 {
		return nil
	}

	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	// Backtrack from the end, then reverse.
	var ops []Op
	i, j := n, m
	for i > 0 && j > 0 {
		if a[i-1] == b[j-1] {
			ops = append(ops, Op{Kind: Equal, A: i - 1, B: j - 1, Text: a[i-1]})
			i--
			j--
		} else if dp[i][j-1] >= dp[i-1][j] {
			// Taking insertions first here puts deletions first once reversed.
			ops = append(ops, Op{Kind: Insert, A: -1, B: j - 1, Text: b[j-1]})
			j--
		} else {
			ops = append(ops, Op{Kind: Delete, A: i - 1, B: -1, Text: a[i-1]})
			i--
		}
	}
	for i > 0 {
		ops = append(ops, Op{Kind: Delete, A: i - 1, B: -1, Text: a[i-1]})
		i--
	}
	for j > 0 {
		ops = append(ops, Op{Kind: Insert, A: -1, B: j - 1, Text: b[j-1]})
		j--
	}

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}
