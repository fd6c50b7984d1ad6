// Package layerdoc reads and writes YAML layer documents and builds a
// configured layer compiler from them.
package layerdoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/compiler"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/profile"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/resource"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/script"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/source"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/terrain"
)

var ErrInvalidDocument = errors.New("layerdoc: invalid document")

type Document struct {
	Name       string              `yaml:"name"`
	Profile    ProfileDoc          `yaml:"profile"`
	Source     SourceDoc           `yaml:"source"`
	OutputSRS  string              `yaml:"output_srs,omitempty"`
	Terrain    *TerrainDoc         `yaml:"terrain,omitempty"`
	Resources  []resource.Resource `yaml:"resources,omitempty"`
	Properties map[string]any      `yaml:"properties,omitempty"`
	Graphs     []GraphDoc          `yaml:"graphs"`
	Levels     []LevelDoc          `yaml:"levels"`

	// BaseDir resolves relative paths; Load sets it to the document's directory.
	BaseDir string `yaml:"-"`
}

type ProfileDoc struct {
	Type     string    `yaml:"type"`
	SRS      string    `yaml:"srs,omitempty"`
	Extent   []float64 `yaml:"extent"`
	CellSize []float64 `yaml:"cell_size,omitempty"`
	Cols     int       `yaml:"cols,omitempty"`
	Rows     int       `yaml:"rows,omitempty"`
}

type SourceDoc struct {
	Path string `yaml:"path"`
	SRS  string `yaml:"srs,omitempty"`
}

type TerrainDoc struct {
	Root      string   `yaml:"root,omitempty"`
	SRS       string   `yaml:"srs,omitempty"`
	Tiles     []string `yaml:"tiles"`
	CacheSize int      `yaml:"cache_size,omitempty"`
}

// GraphDoc lists stages in order. With Inherit set, the stages of the
// named graph come first.
type GraphDoc struct {
	Name    string      `yaml:"name"`
	Inherit string      `yaml:"inherit,omitempty"`
	Filters []FilterDoc `yaml:"filters"`
}

// FilterDoc holds one stage. A property written as {script: "..."} is
// evaluated per feature.
type FilterDoc struct {
	Type       string         `yaml:"type"`
	Name       string         `yaml:"name,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

type LevelDoc struct {
	MinRange float64 `yaml:"min_range"`
	MaxRange float64 `yaml:"max_range"`
	Graph    string  `yaml:"graph"`
}

func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layerdoc: read %s: %w", path, err)
	}
	d, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.BaseDir = filepath.Dir(path)
	return d, nil
}

func Parse(b []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Document) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDocument)
	}
	if len(d.Profile.Extent) != 4 {
		return fmt.Errorf("%w: profile extent needs 4 numbers, got %d", ErrInvalidDocument, len(d.Profile.Extent))
	}
	if len(d.Levels) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, compiler.ErrNoLevels)
	}
	seen := map[string]bool{}
	for _, g := range d.Graphs {
		if g.Name == "" || seen[g.Name] {
			return fmt.Errorf("%w: graph name %q missing or repeated", ErrInvalidDocument, g.Name)
		}
		if g.Inherit != "" && !seen[g.Inherit] {
			return fmt.Errorf("%w: graph %q inherits unknown or later graph %q", ErrInvalidDocument, g.Name, g.Inherit)
		}
		seen[g.Name] = true
	}
	for i, l := range d.Levels {
		if !seen[l.Graph] {
			return fmt.Errorf("%w: level %d uses unknown graph %q", ErrInvalidDocument, i, l.Graph)
		}
	}
	return nil
}

func (d *Document) Marshal() ([]byte, error) { return yaml.Marshal(d) }

func (d *Document) Save(path string) error {
	b, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("layerdoc: encode: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func (d *Document) path(p string) string {
	if p == "" || filepath.IsAbs(p) || d.BaseDir == "" {
		return p
	}
	return filepath.Join(d.BaseDir, p)
}

// Layer is a built document. Graphs are keyed by name.
type Layer struct {
	Compiler *compiler.MapLayerCompiler
	Graphs   map[string]*filter.Graph
	Order    []string
}

type Options struct {
	Registry *filter.Registry
	Session  *filter.Session
	Log      *slog.Logger
}

// Build constructs every graph through the registry, loads the source and
// terrain catalog, and returns a compiler without a writer.
func Build(ctx context.Context, d *Document, o Options) (*Layer, error) {
	if o.Registry == nil {
		return nil, errors.New("layerdoc: a filter registry is required")
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	session := o.Session
	if session == nil {
		session = filter.NewSession()
	}
	if session.Scripts == nil {
		session.Scripts = script.NewLuaEngine(0)
	}
	resolve := func(code string) (*srs.SRS, error) {
		if code == "" {
			return nil, nil
		}
		return session.SRS.Resolve(code)
	}

	for _, r := range d.Resources {
		r.URI = d.path(r.URI)
		if err := session.Resources.Define(r); err != nil {
			return nil, err
		}
	}

	graphs := map[string]*filter.Graph{}
	var order []string
	for _, gd := range d.Graphs {
		g, err := buildGraph(o.Registry, gd, graphs)
		if err != nil {
			return nil, err
		}
		graphs[gd.Name] = g
		order = append(order, gd.Name)
	}

	profSRS, err := resolve(d.Profile.SRS)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	prof, err := buildProfile(d.Profile, profSRS, len(d.Levels))
	if err != nil {
		return nil, err
	}

	srcSRS, err := resolve(d.Source.SRS)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	src, err := source.LoadGeoJSON(d.path(d.Source.Path), srcSRS)
	if err != nil {
		return nil, err
	}

	outSRS, err := resolve(d.OutputSRS)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	env := filter.NewEnv(session)
	env.OutputSRS = outSRS

	m := compiler.NewMapLayerCompiler(d.Name)
	m.Profile = prof
	m.Source = src
	m.Session = session
	m.Env = env
	m.Log = o.Log

	if td := d.Terrain; td != nil {
		tSRS, err := resolve(td.SRS)
		if err != nil {
			return nil, fmt.Errorf("terrain: %w", err)
		}
		root := d.path(td.Root)
		if td.Root == "" {
			root = d.BaseDir
		}
		loader := terrain.FileLoader{Root: root, SRS: tSRS}
		tiles, err := terrain.Catalog(ctx, loader, td.Tiles)
		if err != nil {
			return nil, err
		}
		m.Terrain = terrain.NewReader(loader, tSRS, tiles, td.CacheSize)
		env.TerrainSRS = tSRS
	}

	for _, l := range d.Levels {
		m.Levels = append(m.Levels, compiler.Level{MinRange: l.MinRange, MaxRange: l.MaxRange, Graph: graphs[l.Graph]})
	}
	if err := setProperties(m, d.Properties); err != nil {
		return nil, err
	}
	return &Layer{Compiler: m, Graphs: graphs, Order: order}, nil
}

func buildGraph(reg *filter.Registry, gd GraphDoc, built map[string]*filter.Graph) (*filter.Graph, error) {
	stages := make([]filter.Filter, 0, len(gd.Filters))
	for i, fd := range gd.Filters {
		f, err := reg.New(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("graph %q stage %d: %w", gd.Name, i, err)
		}
		if fd.Name != "" {
			if err := f.SetProperty("name", props.String(fd.Name)); err != nil {
				return nil, err
			}
		}
		if err := setProperties(f, fd.Properties); err != nil {
			return nil, fmt.Errorf("graph %q stage %d: %w", gd.Name, i, err)
		}
		stages = append(stages, f)
	}
	if gd.Inherit != "" {
		return built[gd.Inherit].Inherit(gd.Name, stages...)
	}
	return filter.NewGraph(gd.Name, stages...)
}

func buildProfile(pd ProfileDoc, s *srs.SRS, levels int) (profile.Profile, error) {
	e := pd.Extent
	ext := model.NewExtent(e[0], e[1], e[2], e[3], s)
	var cw, ch float64
	if len(pd.CellSize) > 0 {
		cw, ch = pd.CellSize[0], pd.CellSize[0]
		if len(pd.CellSize) > 1 {
			ch = pd.CellSize[1]
		}
	}
	switch strings.ToLower(pd.Type) {
	case "", "quadtree":
		return profile.NewQuadTree(ext, cw, ch, levels)
	case "grid":
		if pd.Cols > 0 || pd.Rows > 0 {
			return profile.NewGrid(ext, max(pd.Cols, 1), max(pd.Rows, 1), levels)
		}
		return profile.NewGridBySize(ext, cw, ch, levels)
	}
	return nil, fmt.Errorf("%w: unknown profile type %q", ErrInvalidDocument, pd.Type)
}

type propertySetter interface {
	SetProperty(name string, v props.Value) error
}

// setProperties applies the map in key order so errors are reproducible.
func setProperties(dst propertySetter, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := toValue(m[k])
		if err != nil {
			return fmt.Errorf("property %s: %w", k, err)
		}
		if err := dst.SetProperty(k, v); err != nil {
			return err
		}
	}
	return nil
}

func toValue(v any) (props.Value, error) {
	switch t := v.(type) {
	case string:
		return props.String(t), nil
	case bool:
		return props.Bool(t), nil
	case int:
		return props.Int(int64(t)), nil
	case int64:
		return props.Int(t), nil
	case float64:
		return props.Float(t), nil
	case []any:
		vec := make([]float64, len(t))
		for i, e := range t {
			switch n := e.(type) {
			case int:
				vec[i] = float64(n)
			case float64:
				vec[i] = n
			default:
				return props.Value{}, fmt.Errorf("%w: vector element %v", props.ErrWrongKind, e)
			}
		}
		return props.Vec(vec...), nil
	case map[string]any:
		if src, ok := t["script"].(string); ok && len(t) == 1 {
			return props.Script(src), nil
		}
	}
	return props.Value{}, fmt.Errorf("%w: unsupported value %v", props.ErrWrongKind, v)
}

func fromValue(v props.Value) any {
	switch v.Kind {
	case props.KindBool:
		b, _ := v.AsBool()
		return b
	case props.KindInt:
		n, _ := v.AsInt()
		return n
	case props.KindFloat:
		f, _ := v.AsFloat()
		return f
	case props.KindVec:
		vec, _ := v.AsVec()
		if vec == nil {
			return []float64{}
		}
		return vec
	case props.KindScript:
		return map[string]any{"script": v.AsString()}
	}
	return v.AsString()
}

type propertyLister interface {
	Properties() []props.Property
}

func describe(p propertyLister) map[string]any {
	out := map[string]any{}
	for _, pr := range p.Properties() {
		if pr.Name == "name" {
			continue
		}
		out[pr.Name] = fromValue(pr.Value)
	}
	return out
}

// DescribeGraph renders a live graph, flattened, through its filters'
// properties.
func DescribeGraph(g *filter.Graph) GraphDoc {
	gd := GraphDoc{Name: g.Name()}
	for _, f := range g.Stages() {
		fd := FilterDoc{Type: f.Type(), Properties: describe(f)}
		if f.Name() != f.Type() {
			fd.Name = f.Name()
		}
		gd.Filters = append(gd.Filters, fd)
	}
	return gd
}

// Capture copies the current state of a built layer back into d so that
// Save persists property changes made after Build.
func (d *Document) Capture(l *Layer) {
	d.Graphs = d.Graphs[:0]
	for _, name := range l.Order {
		d.Graphs = append(d.Graphs, DescribeGraph(l.Graphs[name]))
	}
	m := l.Compiler
	d.Name = m.Name()
	d.Properties = describe(m)
	for i := range d.Levels {
		if i < len(m.Levels) {
			d.Levels[i].MinRange = m.Levels[i].MinRange
			d.Levels[i].MaxRange = m.Levels[i].MaxRange
		}
	}
}
