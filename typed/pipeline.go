package typed

import (
	"github.com/mondolib/mondo/raw"
)

// SortKey orders results by one path.
type SortKey struct {
	Path Path
	Desc bool
}

// Asc sorts ascending on the path.
func Asc(p Path) SortKey { return SortKey{Path: p} }

// Desc sorts descending on the path.
func Desc(p Path) SortKey { return SortKey{Path: p, Desc: true} }

func lowerSortKeys(keys []SortKey) raw.Document {
	d := make(raw.Document, 0, len(keys))
	for _, k := range keys {
		dir := raw.Int32(1)
		if k.Desc {
			dir = raw.Int32(-1)
		}
		d = append(d, raw.E(k.Path.String(), dir))
	}
	return d
}

// Accumulator is one aggregated output of a group stage.
type Accumulator struct {
	Name string
	op   string
	path Path
	lit  raw.Value
}

// Sum accumulates the sum of the path's values under the given output name.
func Sum(name string, p Path) Accumulator { return Accumulator{Name: name, op: "$sum", path: p} }

// Avg accumulates the mean of the path's values.
func Avg(name string, p Path) Accumulator { return Accumulator{Name: name, op: "$avg", path: p} }

// Min accumulates the smallest of the path's values.
func Min(name string, p Path) Accumulator { return Accumulator{Name: name, op: "$min", path: p} }

// Max accumulates the largest of the path's values.
func Max(name string, p Path) Accumulator { return Accumulator{Name: name, op: "$max", path: p} }

// CountAcc counts the documents in each group.
func CountAcc(name string) Accumulator {
	return Accumulator{Name: name, op: "$sum", lit: raw.Int32(1)}
}

func (a Accumulator) lower() raw.Document {
	v := a.lit
	if v == nil {
		v = raw.String("$" + a.path.String())
	}
	return raw.D(raw.E(a.op, v))
}

type stage interface {
	lower() (raw.Document, error)
}

// Pipeline is an ordered sequence of aggregation stages. Stage arguments are
// validated at construction through the Path and Filter types; stages over
// reshaped intermediate documents use Raw.
type Pipeline struct {
	stages []stage
	err    error
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{} }

// Err reports the construction error, if any.
func (p *Pipeline) Err() error { return p.err }

func (p *Pipeline) push(s stage, err error) *Pipeline {
	if p.err == nil {
		p.err = err
	}
	p.stages = append(p.stages, s)
	return p
}

type matchStage struct{ f Filter }

func (s matchStage) lower() (raw.Document, error) {
	d, err := s.f.Lower()
	if err != nil {
		return nil, err
	}
	return raw.D(raw.E("$match", d)), nil
}

// Match keeps only documents satisfying the filter.
func (p *Pipeline) Match(f Filter) *Pipeline {
	return p.push(matchStage{f: f}, f.Err())
}

type sortStage struct{ keys []SortKey }

func (s sortStage) lower() (raw.Document, error) {
	return raw.D(raw.E("$sort", lowerSortKeys(s.keys))), nil
}

// Sort orders documents by the given keys, most significant first.
func (p *Pipeline) Sort(keys ...SortKey) *Pipeline {
	return p.push(sortStage{keys: keys}, nil)
}

type projectStage struct {
	paths   []Path
	exclude bool
}

func (s projectStage) lower() (raw.Document, error) {
	d := make(raw.Document, 0, len(s.paths))
	flag := raw.Int32(1)
	if s.exclude {
		flag = raw.Int32(0)
	}
	for _, p := range s.paths {
		d = append(d, raw.E(p.String(), flag))
	}
	return raw.D(raw.E("$project", d)), nil
}

// Project keeps only the given paths. The identifier is always kept.
func (p *Pipeline) Project(paths ...Path) *Pipeline {
	return p.push(projectStage{paths: paths}, nil)
}

// ProjectExclude drops the given paths and keeps everything else.
func (p *Pipeline) ProjectExclude(paths ...Path) *Pipeline {
	return p.push(projectStage{paths: paths, exclude: true}, nil)
}

type skipStage struct{ n int64 }

func (s skipStage) lower() (raw.Document, error) {
	return raw.D(raw.E("$skip", raw.Int64(s.n))), nil
}

// Skip drops the first n documents.
func (p *Pipeline) Skip(n int64) *Pipeline { return p.push(skipStage{n: n}, nil) }

type limitStage struct{ n int64 }

func (s limitStage) lower() (raw.Document, error) {
	return raw.D(raw.E("$limit", raw.Int64(s.n))), nil
}

// Limit keeps at most n documents.
func (p *Pipeline) Limit(n int64) *Pipeline { return p.push(limitStage{n: n}, nil) }

type countStage struct{ field string }

func (s countStage) lower() (raw.Document, error) {
	return raw.D(raw.E("$count", raw.String(s.field))), nil
}

// Count replaces the stream with a single document holding the document
// count under the given field name.
func (p *Pipeline) Count(field string) *Pipeline { return p.push(countStage{field: field}, nil) }

type groupStage struct {
	by   *Path
	accs []Accumulator
}

func (s groupStage) lower() (raw.Document, error) {
	var key raw.Value = raw.Null{}
	if s.by != nil {
		key = raw.String("$" + s.by.String())
	}
	d := raw.D(raw.E("_id", key))
	for _, a := range s.accs {
		d = append(d, raw.E(a.Name, a.lower()))
	}
	return raw.D(raw.E("$group", d)), nil
}

// GroupBy groups documents by the value at the path and computes the
// accumulators per group. The output documents carry the group key under
// "_id"; use AggregateRaw to consume them.
func (p *Pipeline) GroupBy(by Path, accs ...Accumulator) *Pipeline {
	return p.push(groupStage{by: &by, accs: accs}, nil)
}

// GroupAll collapses the whole stream into one group.
func (p *Pipeline) GroupAll(accs ...Accumulator) *Pipeline {
	return p.push(groupStage{accs: accs}, nil)
}

type rawStage struct{ d raw.Document }

func (s rawStage) lower() (raw.Document, error) { return s.d.Clone(), nil }

// Raw appends a hand-built stage. It is passed through without validation.
func (p *Pipeline) Raw(d raw.Document) *Pipeline {
	return p.push(rawStage{d: d.Clone()}, nil)
}

// Lower produces the pipeline's generic form: an array of stage documents in
// declaration order.
func (p *Pipeline) Lower() (raw.Array, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make(raw.Array, 0, len(p.stages))
	for _, s := range p.stages {
		d, err := s.lower()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
