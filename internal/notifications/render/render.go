// Package render evaluates user-authored subject and body templates in a sandbox.
//
// Templates use Django/Jinja syntax ({{ job.name }}, {% if job.failed %}) and can only
// see the plain data handed to them. Tags that load other templates, read files or mutate
// the evaluation environment are banned, and the context is copied into maps, slices and
// scalars before execution so no Go value or method is reachable from a template.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
)

// Context is the data a template is rendered against.
type Context = map[string]interface{}

var bannedTags = []string{"include", "extends", "import", "ssi", "set", "macro"}

var errNoLoader = errors.New("template loading is disabled")

// denyLoader refuses every lookup so include/extends cannot reach the filesystem
// even if a tag slips through.
type denyLoader struct{}

func (denyLoader) Abs(base, name string) string { return name }

func (denyLoader) Get(path string) (io.Reader, error) { return nil, errNoLoader }

// Renderer compiles and executes templates. It is safe for concurrent use.
type Renderer struct {
	mu  sync.Mutex
	set *pongo2.TemplateSet
}

// New returns a Renderer with the sandbox restrictions applied.
func New() *Renderer {
	set := pongo2.NewSet("notifications", denyLoader{})
	for _, tag := range bannedTags {
		// Unknown tag names are the only failure and the list is fixed.
		_ = set.BanTag(tag)
	}
	return &Renderer{set: set}
}

var defaultRenderer = New()

// Render evaluates text with the package renderer. See Renderer.Render.
func Render(text string, ctx Context) string {
	return defaultRenderer.Render(text, ctx)
}

// Check evaluates text with the package renderer and reports the failure. See Renderer.Check.
func Check(text string, ctx Context) error {
	return defaultRenderer.Check(text, ctx)
}

// Render evaluates text against ctx. Syntax errors, attribute lookups or calls on undefined
// values, banned constructs and panics all yield "". A bare undefined name renders empty.
func (r *Renderer) Render(text string, ctx Context) string {
	out, err := r.execute(text, ctx)
	if err != nil {
		return ""
	}
	return out
}

// Check runs the same evaluation as Render but returns the error, for validating
// templates before they are saved.
func (r *Renderer) Check(text string, ctx Context) error {
	_, err := r.execute(text, ctx)
	return err
}

func (r *Renderer) execute(text string, ctx Context) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = "", fmt.Errorf("template panic: %v", rec)
		}
	}()

	if text == "" {
		return "", nil
	}

	tpl, err := r.compile(text)
	if err != nil {
		return "", err
	}
	data, _ := sanitize(ctx).(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	if err := checkReferences(text, data); err != nil {
		return "", err
	}
	return tpl.Execute(pongo2.Context(data))
}

func (r *Renderer) compile(text string) (*pongo2.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// autoescape is a package-wide pongo2 default; notifications are not HTML.
	return r.set.FromString("{% autoescape off %}" + text + "{% endautoescape %}")
}

// sanitize deep-copies v into plain data. Structs, pointers and functions are reduced to
// their JSON form so nothing with methods survives.
func sanitize(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = sanitize(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = sanitize(child)
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = child
		}
		return out
	case string, bool, int, int32, int64, uint, uint32, uint64:
		return val
	case float32:
		return normalizeFloat(float64(val))
	case float64:
		return normalizeFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		var plain interface{}
		if err := json.Unmarshal(data, &plain); err != nil {
			return nil
		}
		return sanitize(plain)
	}
}

// normalizeFloat keeps whole numbers printing as integers (42, not 42.000000).
func normalizeFloat(f float64) interface{} {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
