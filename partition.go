package binindex

// Span is a half-open range [Start, End) of positions in the sorted key
// sequence that make up one bin.
type Span struct {
	Start, End int
}

// Len returns the number of entries in the span.
func (s Span) Len() int { return s.End - s.Start }

// Last returns the position of the pivot, the greatest key in the span.
func (s Span) Last() int { return s.End - 1 }

// Partition cuts n sorted entries into ceil(n/binSize) contiguous spans. All
// spans but the last hold exactly binSize entries. It returns nil for n == 0.
func Partition(n, binSize int) []Span {
	if n <= 0 || binSize < 1 {
		return nil
	}

	numBins := (n + binSize - 1) / binSize
	spans := make([]Span, numBins)
	for i := range spans {
		start := i * binSize
		end := start + binSize
		if end > n {
			end = n
		}
		spans[i] = Span{Start: start, End: end}
	}
	return spans
}

// Plan is the layout of an index: the sorted keys, the bin spans over
// them and one pivot per bin.
type Plan struct {
	Keys   []string
	Spans  []Span
	Pivots []string
}

// NewPlan sorts keys and partitions them into bins of binSize.
func NewPlan(keys []string, binSize int) (*Plan, error) {
	if binSize < 1 {
		return nil, ErrInvalidBinSize
	}

	sorted, err := SortKeys(keys)
	if err != nil {
		return nil, err
	}

	spans := Partition(len(sorted), binSize)
	pivots := make([]string, len(spans))
	for i, s := range spans {
		pivots[i] = sorted[s.Last()]
	}

	return &Plan{Keys: sorted, Spans: spans, Pivots: pivots}, nil
}

// NumBins returns the number of bins.
func (p *Plan) NumBins() int { return len(p.Spans) }

// BinKeys returns the keys of the i-th bin.
func (p *Plan) BinKeys(i int) []string {
	s := p.Spans[i]
	return p.Keys[s.Start:s.End]
}
