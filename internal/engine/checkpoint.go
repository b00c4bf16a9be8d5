package engine

import (
	"fmt"
	"time"

	"github.com/surropt/surropt/internal/store"
)

// tableFromLog flattens the log into the tabular checkpoint form.
func tableFromLog(l *Log) *store.Table {
	t := &store.Table{
		ParamNames: l.ParamNames(),
		ExtraNames: l.ExtraNames(),
	}
	for _, o := range l.Rows() {
		extras := make([]float64, len(t.ExtraNames))
		for i, name := range t.ExtraNames {
			extras[i] = o.Extras[name]
		}
		t.Rows = append(t.Rows, store.Row{
			Iteration: o.Iteration,
			Params:    o.Params,
			Elapsed:   o.Elapsed.Seconds(),
			Score:     o.Score,
			Extras:    extras,
		})
	}
	return t
}

// LogFromTable rebuilds an observation log from a loaded checkpoint, for
// use as Config.Resume.
func LogFromTable(t *store.Table) (*Log, error) {
	l := NewLog(t.ParamNames)
	for i, row := range t.Rows {
		var extras map[string]float64
		if len(t.ExtraNames) > 0 {
			extras = make(map[string]float64, len(t.ExtraNames))
			for j, name := range t.ExtraNames {
				extras[name] = row.Extras[j]
			}
		}
		obs := Observation{
			Iteration: row.Iteration,
			Params:    row.Params,
			Elapsed:   time.Duration(row.Elapsed * float64(time.Second)),
			Score:     row.Score,
			Extras:    extras,
		}
		if err := l.AppendBatch([]Observation{obs}); err != nil {
			return nil, fmt.Errorf("checkpoint row %d: %w", i, err)
		}
	}
	return l, nil
}
