package lva

import (
	"sort"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"golang.org/x/tools/container/intsets"
)

func (t *varTable) captures(set *intsets.Sparse) []cfg.CaptureID {
	var ids []cfg.CaptureID
	for _, n := range set.AppendTo(nil) {
		if v := t.vars[n]; v.IsCapture() {
			ids = append(ids, v.capture)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Result) liveInCaptures(b *cfg.BasicBlock) []cfg.CaptureID {
	mustOwn(r.graph, b)
	return r.vars.captures(&r.liveIn[b.Ordinal])
}

func (r *Result) liveOutCaptures(b *cfg.BasicBlock) []cfg.CaptureID {
	mustOwn(r.graph, b)
	return r.vars.captures(&r.liveOut[b.Ordinal])
}
