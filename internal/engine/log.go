package engine

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Observation is one evaluated parameter vector with its outcome.
type Observation struct {
	Iteration int
	Params    []float64
	Elapsed   time.Duration
	Score     float64
	Extras    map[string]float64
}

// Log is the append-only record of every evaluation in a run. Its column
// schema (parameter names plus the extra metric names of the first batch)
// is fixed once the first batch lands; later batches must match it.
type Log struct {
	paramNames []string
	extraNames []string
	frozen     bool
	rows       []Observation
	distinct   map[string]bool
}

// NewLog returns an empty log over the given parameter columns.
func NewLog(paramNames []string) *Log {
	return &Log{
		paramNames: append([]string(nil), paramNames...),
		distinct:   make(map[string]bool),
	}
}

// AppendBatch records a batch of observations. The first batch freezes the
// extra-metric schema; any later observation carrying different extras is
// rejected.
func (l *Log) AppendBatch(obs []Observation) error {
	for _, o := range obs {
		if len(o.Params) != len(l.paramNames) {
			return fmt.Errorf("log: observation has %d parameters, schema has %d", len(o.Params), len(l.paramNames))
		}
	}
	if !l.frozen && len(obs) > 0 {
		l.extraNames = sortedKeys(obs[0].Extras)
		l.frozen = true
	}
	for _, o := range obs {
		if !extrasMatch(o.Extras, l.extraNames) {
			return fmt.Errorf("log: observation extras %v do not match schema %v", sortedKeys(o.Extras), l.extraNames)
		}
	}
	for _, o := range obs {
		o.Params = append([]float64(nil), o.Params...)
		l.rows = append(l.rows, o)
		l.distinct[vecKey(o.Params)] = true
	}
	return nil
}

// Len returns the number of recorded observations.
func (l *Log) Len() int { return len(l.rows) }

// DistinctCount returns the number of unique parameter vectors evaluated.
func (l *Log) DistinctCount() int { return len(l.distinct) }

// Rows returns the observations in append order.
func (l *Log) Rows() []Observation { return l.rows }

// ParamNames returns the parameter column names.
func (l *Log) ParamNames() []string { return l.paramNames }

// ExtraNames returns the extra metric columns, sorted, once the schema is
// frozen.
func (l *Log) ExtraNames() []string { return l.extraNames }

// Best returns the observation with the highest score, or false on an
// empty log. Ties keep the earliest.
func (l *Log) Best() (Observation, bool) {
	if len(l.rows) == 0 {
		return Observation{}, false
	}
	best := l.rows[0]
	for _, o := range l.rows[1:] {
		if o.Score > best.Score {
			best = o
		}
	}
	return best, true
}

// ParamVectors returns every evaluated parameter vector, duplicates
// included, in append order.
func (l *Log) ParamVectors() [][]float64 {
	out := make([][]float64, len(l.rows))
	for i, o := range l.rows {
		out[i] = o.Params
	}
	return out
}

// Contains reports whether the exact parameter vector was already
// evaluated.
func (l *Log) Contains(x []float64) bool {
	return l.distinct[vecKey(x)]
}

// MaxIteration returns the highest iteration tag recorded, or 0 on an
// empty log.
func (l *Log) MaxIteration() int {
	max := 0
	for _, o := range l.rows {
		if o.Iteration > max {
			max = o.Iteration
		}
	}
	return max
}

// SchemaMatches reports whether the other log carries exactly the same
// parameter and extra columns.
func (l *Log) SchemaMatches(other *Log) bool {
	if !stringsEqual(l.paramNames, other.paramNames) {
		return false
	}
	// An unfrozen side matches anything: it has not committed to extras.
	if !l.frozen || !other.frozen {
		return true
	}
	return stringsEqual(l.extraNames, other.extraNames)
}

func sortedKeys(m map[string]float64) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func extrasMatch(m map[string]float64, names []string) bool {
	if len(m) != len(names) {
		return false
	}
	for _, n := range names {
		if _, ok := m[n]; !ok {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func vecKey(x []float64) string {
	buf := make([]byte, 0, 16*len(x))
	for _, v := range x {
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, '|')
	}
	return string(buf)
}
