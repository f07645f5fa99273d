package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mondolib/mondo/driver"
	"github.com/mondolib/mondo/raw"
)

func (e *Engine) runAggregate(ctx context.Context, cmd raw.Document) ([]raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	pipelineVal, _ := cmd.Lookup("pipeline")
	pipeline, ok := pipelineVal.(raw.Array)
	if !ok {
		return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "aggregate needs a pipeline array"}
	}
	docs, err := e.collect(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, sv := range pipeline {
		stage, ok := sv.(raw.Document)
		if !ok || len(stage) != 1 {
			return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "pipeline stages must be single-key documents"}
		}
		docs, err = applyStage(stage[0].Key, stage[0].Value, docs)
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func applyStage(op string, arg raw.Value, docs []raw.Document) ([]raw.Document, error) {
	switch op {
	case "$match":
		filter, ok := arg.(raw.Document)
		if !ok {
			return nil, badStage(op, "needs a filter document")
		}
		var out []raw.Document
		for _, d := range docs {
			hit, err := matchDocument(filter, d)
			if err != nil {
				return nil, err
			}
			if hit {
				out = append(out, d)
			}
		}
		return out, nil
	case "$sort":
		spec, ok := arg.(raw.Document)
		if !ok {
			return nil, badStage(op, "needs a sort document")
		}
		out := append([]raw.Document(nil), docs...)
		sortDocuments(out, spec)
		return out, nil
	case "$skip":
		n := valueToInt(arg)
		if n >= int64(len(docs)) {
			return nil, nil
		}
		return docs[n:], nil
	case "$limit":
		n := valueToInt(arg)
		if n < int64(len(docs)) {
			return docs[:n], nil
		}
		return docs, nil
	case "$count":
		field, ok := arg.(raw.String)
		if !ok || field == "" {
			return nil, badStage(op, "needs a field name")
		}
		return []raw.Document{raw.D(raw.E(string(field), raw.Int64(len(docs))))}, nil
	case "$project":
		spec, ok := arg.(raw.Document)
		if !ok {
			return nil, badStage(op, "needs a projection document")
		}
		return projectDocuments(docs, spec)
	case "$group":
		spec, ok := arg.(raw.Document)
		if !ok {
			return nil, badStage(op, "needs a group document")
		}
		return groupDocuments(docs, spec)
	}
	return nil, badStage(op, "is not supported")
}

func badStage(op, msg string) error {
	return &driver.Error{Code: driver.CodeBadCommand, Message: fmt.Sprintf("stage %s %s", op, msg)}
}

func valueToInt(v raw.Value) int64 {
	switch n := v.(type) {
	case raw.Int32:
		return int64(n)
	case raw.Int64:
		return int64(n)
	case raw.Double:
		return int64(n)
	}
	return 0
}

// projectDocuments applies an inclusion or exclusion projection. The first
// entry decides the mode; the identifier is kept under inclusion unless
// excluded explicitly.
func projectDocuments(docs []raw.Document, spec raw.Document) ([]raw.Document, error) {
	if len(spec) == 0 {
		return docs, nil
	}
	include := false
	excludeID := false
	for _, e := range spec {
		flag := valueToInt(e.Value) != 0
		if e.Key == "_id" && !flag {
			excludeID = true
			continue
		}
		include = flag
	}

	out := make([]raw.Document, 0, len(docs))
	for _, d := range docs {
		var next raw.Document
		if include {
			next = raw.Document{}
			if !excludeID {
				if id, ok := d.Lookup("_id"); ok {
					next = append(next, raw.E("_id", id))
				}
			}
			for _, e := range spec {
				if e.Key == "_id" || valueToInt(e.Value) == 0 {
					continue
				}
				if v, ok := lookupPathValue(d, e.Key); ok {
					if err := setPath(&next, e.Key, raw.CloneValue(v)); err != nil {
						return nil, err
					}
				}
			}
		} else {
			next = d.Clone()
			for _, e := range spec {
				if valueToInt(e.Value) != 0 {
					continue
				}
				if err := unsetPath(&next, e.Key); err != nil {
					return nil, err
				}
			}
		}
		out = append(out, next)
	}
	return out, nil
}

// groupDocuments groups by the "_id" expression and computes accumulator
// fields. Groups appear in order of first occurrence.
func groupDocuments(docs []raw.Document, spec raw.Document) ([]raw.Document, error) {
	keyExpr, ok := spec.Lookup("_id")
	if !ok {
		return nil, badStage("$group", "needs an _id expression")
	}

	type accSpec struct {
		name string
		op   string
		expr raw.Value
	}
	var accs []accSpec
	for _, e := range spec {
		if e.Key == "_id" {
			continue
		}
		ad, ok := e.Value.(raw.Document)
		if !ok || len(ad) != 1 {
			return nil, badStage("$group", "accumulators must be single-operator documents")
		}
		accs = append(accs, accSpec{name: e.Key, op: ad[0].Key, expr: ad[0].Value})
	}

	type group struct {
		key    raw.Value
		counts []int64
		sums   []float64
		mins   []raw.Value
		maxs   []raw.Value
		isInt  []bool
	}
	var order []string
	groups := map[string]*group{}

	for _, d := range docs {
		key := evalExpr(keyExpr, d)
		if key == nil {
			key = raw.Null{}
		}
		mapKey := raw.Format(key)
		g, seen := groups[mapKey]
		if !seen {
			g = &group{
				key:    key,
				counts: make([]int64, len(accs)),
				sums:   make([]float64, len(accs)),
				mins:   make([]raw.Value, len(accs)),
				maxs:   make([]raw.Value, len(accs)),
				isInt:  make([]bool, len(accs)),
			}
			for i := range g.isInt {
				g.isInt[i] = true
			}
			groups[mapKey] = g
			order = append(order, mapKey)
		}
		for i, a := range accs {
			v := evalExpr(a.expr, d)
			switch a.op {
			case "$sum":
				if n, ok := numericValue(v); ok {
					g.sums[i] += n
					g.counts[i]++
					if isDouble(v) {
						g.isInt[i] = false
					}
				}
			case "$avg":
				if n, ok := numericValue(v); ok {
					g.sums[i] += n
					g.counts[i]++
				}
			case "$min":
				if v == nil {
					continue
				}
				if g.mins[i] == nil || compareForSort(v, g.mins[i]) < 0 {
					g.mins[i] = v
				}
			case "$max":
				if v == nil {
					continue
				}
				if g.maxs[i] == nil || compareForSort(v, g.maxs[i]) > 0 {
					g.maxs[i] = v
				}
			default:
				return nil, badStage("$group", fmt.Sprintf("accumulator %s is not supported", a.op))
			}
		}
	}

	out := make([]raw.Document, 0, len(order))
	for _, mapKey := range order {
		g := groups[mapKey]
		d := raw.D(raw.E("_id", g.key))
		for i, a := range accs {
			switch a.op {
			case "$sum":
				if g.isInt[i] {
					d = append(d, raw.E(a.name, raw.Int64(int64(g.sums[i]))))
				} else {
					d = append(d, raw.E(a.name, raw.Double(g.sums[i])))
				}
			case "$avg":
				if g.counts[i] == 0 {
					d = append(d, raw.E(a.name, raw.Null{}))
				} else {
					d = append(d, raw.E(a.name, raw.Double(g.sums[i]/float64(g.counts[i]))))
				}
			case "$min":
				d = append(d, raw.E(a.name, orNull(g.mins[i])))
			case "$max":
				d = append(d, raw.E(a.name, orNull(g.maxs[i])))
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func orNull(v raw.Value) raw.Value {
	if v == nil {
		return raw.Null{}
	}
	return v
}

// evalExpr evaluates a group expression: a "$path" string resolves against
// the document, anything else is a literal. A missing path yields nil.
func evalExpr(expr raw.Value, d raw.Document) raw.Value {
	if s, ok := expr.(raw.String); ok && strings.HasPrefix(string(s), "$") {
		v, ok := lookupPathValue(d, strings.TrimPrefix(string(s), "$"))
		if !ok {
			return nil
		}
		return v
	}
	return expr
}
