package comparison

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// Builder turns the per-variant samples of one round into comparison requests and writes the
// comparison file for each of them.
type Builder struct {
	mode     domain.ComparisonMode
	baseline string
	// Directory comparison files are written to. One subdirectory is created per round.
	dir string
}

func NewBuilder(mode domain.ComparisonMode, baseline string, dir string) *Builder {
	return &Builder{
		mode:     mode,
		baseline: baseline,
		dir:      dir,
	}
}

// Pairs returns the pairs to compare for the given active identifiers, in a stable order.
func (b *Builder) Pairs(active []string) []Pair {
	switch b.mode {
	case domain.AllCombinationsMode:
		return allCombinations(active)
	default:
		return againstBaseline(b.baseline, active)
	}
}

// Build creates one request per pair for the given round. Every comparison file has been fully
// written and closed when Build returns.
func (b *Builder) Build(round int, active []string, series map[string][]int64) ([]*Request, error) {
	pairs := b.Pairs(active)
	if len(pairs) == 0 {
		return []*Request{}, nil
	}
	roundDir := filepath.Join(b.dir, fmt.Sprintf("round-%04d", round))
	if err := os.MkdirAll(roundDir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}

	requests := make([]*Request, 0, len(pairs))
	for i, pair := range pairs {
		// Index prefix keeps names unique across identifiers that sanitize alike.
		base := filepath.Join(roundDir, fmt.Sprintf("%03d_%s_vs_%s", i+1, sanitize(pair.A), sanitize(pair.B)))
		req := &Request{
			IdentifierA: pair.A,
			IdentifierB: pair.B,
			Path:        base + fileExtension,
			OutputPath:  base + outputFileTail,
			SamplesA:    snapshot(series[pair.A]),
			SamplesB:    snapshot(series[pair.B]),
		}
		if err := WriteSamples(req.Path, req.SamplesA, req.SamplesB); err != nil {
			return nil, errors.WithMessagef(err, "writing comparison file for %s", req)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func againstBaseline(baseline string, active []string) []Pair {
	pairs := make([]Pair, 0, len(active))
	hasBaseline := false
	for _, id := range active {
		if id == baseline {
			hasBaseline = true
			break
		}
	}
	if !hasBaseline {
		return pairs
	}
	for _, id := range active {
		if id != baseline {
			pairs = append(pairs, Pair{A: baseline, B: id})
		}
	}
	return pairs
}

func allCombinations(active []string) []Pair {
	pairs := make([]Pair, 0, len(active)*(len(active)-1)/2)
	seen := make(map[Pair]bool, cap(pairs))
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			pair := Pair{A: active[i], B: active[j]}
			if pair.A == pair.B || seen[pair.Key()] {
				continue
			}
			seen[pair.Key()] = true
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

func snapshot(samples []int64) []int64 {
	copied := make([]int64, len(samples))
	copy(copied, samples)
	return copied
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
