package comparison

// Pair is an unordered pair of variant identifiers. (A, B) and (B, A) are the same pair.
type Pair struct {
	A string
	B string
}

func (p Pair) Equal(other Pair) bool {
	return (p.A == other.A && p.B == other.B) || (p.A == other.B && p.B == other.A)
}

// Key returns a representation that is identical for both orderings of the pair.
func (p Pair) Key() Pair {
	if p.B < p.A {
		return Pair{A: p.B, B: p.A}
	}
	return p
}

// Request asks the oracle whether the samples of IdentifierA and IdentifierB are distinguishable.
// Samples are snapshots taken when the request was built; the request is never mutated afterwards.
type Request struct {
	IdentifierA string
	IdentifierB string
	// Path of the comparison file holding both series. This is the handle passed to the oracle.
	Path string
	// Path the oracle may write its own output to.
	OutputPath string
	SamplesA   []int64
	SamplesB   []int64
}

func (r *Request) Pair() Pair {
	return Pair{A: r.IdentifierA, B: r.IdentifierB}
}

func (r *Request) String() string {
	return r.IdentifierA + " vs " + r.IdentifierB
}
