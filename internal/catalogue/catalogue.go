// Package catalogue holds the fixed set of operations the model may call, their parameter
// schemas, and the decoder that turns a model's untyped argument bag into typed Args.
package catalogue

import (
	"fmt"
	"reflect"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

// Version changes whenever an operation or parameter is added, removed or renamed.
const Version = "2025.10.1"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeBoolean ParamType = "boolean"
)

// Param describes one argument of an operation. Description is only meant for the model.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Descriptor is one callable operation.
type Descriptor struct {
	Name    string
	Purpose string
	Params  []Param

	argsType reflect.Type
}

// ActionRequest is one operation the model asked for, with its raw arguments.
type ActionRequest struct {
	Name string
	Args map[string]any
}

// Catalogue is immutable once built.
type Catalogue struct {
	descriptors []Descriptor
	byName      map[string]int
}

var defaultCatalogue = mustBuild([]entry{
	{CreatePollArgs{}, "Create a poll with a question and two to four options. Admins only."},
	{GetPollResultArgs{}, "Get results for all active polls."},
	{GetSpecificPollResultArgs{}, "Get results for one poll identified by ID or by part of its question."},
	{UpdatePollArgs{}, "Update an existing poll's question, options or active flag. Admins only."},
	{DeletePollArgs{}, "Close (soft-delete) a poll by ID or by part of its question. Admins only."},
	{DeleteAllPollsArgs{}, "Close every active poll. Requires confirmed=true. Admins only."},
	{VotePollArgs{}, "Vote on an active poll by selecting option 1, 2, 3 or 4."},
})

// Default returns the service's catalogue.
func Default() *Catalogue { return defaultCatalogue }

type entry struct {
	args    Args
	purpose string
}

func mustBuild(entries []entry) *Catalogue {
	c := &Catalogue{byName: make(map[string]int, len(entries))}
	for _, e := range entries {
		d, err := describe(e.args, e.purpose)
		if err != nil {
			panic(err)
		}
		if _, dup := c.byName[d.Name]; dup {
			panic(fmt.Sprintf("catalogue: duplicate operation %q", d.Name))
		}
		c.byName[d.Name] = len(c.descriptors)
		c.descriptors = append(c.descriptors, d)
	}
	return c
}

func describe(args Args, purpose string) (Descriptor, error) {
	t := reflect.TypeOf(args)
	d := Descriptor{Name: args.Operation(), Purpose: purpose, argsType: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		var pt ParamType
		switch ft.Kind() {
		case reflect.String:
			pt = TypeString
		case reflect.Bool:
			pt = TypeBoolean
		default:
			return Descriptor{}, fmt.Errorf("catalogue: %s.%s has unsupported type %s", d.Name, name, f.Type)
		}
		d.Params = append(d.Params, Param{
			Name:        name,
			Type:        pt,
			Required:    !strings.Contains(opts, "omitempty"),
			Description: f.Tag.Get("jsonschema_description"),
		})
	}
	return d, nil
}

func (c *Catalogue) Version() string { return Version }

// Descriptors returns a copy of all operations in declaration order.
func (c *Catalogue) Descriptors() []Descriptor {
	return append([]Descriptor(nil), c.descriptors...)
}

func (c *Catalogue) Lookup(name string) (Descriptor, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return c.descriptors[i], true
}

// RequiredParams lists the names of required parameters.
func (d Descriptor) RequiredParams() []string {
	return lo.FilterMap(d.Params, func(p Param, _ int) (string, bool) {
		return p.Name, p.Required
	})
}

func (d Descriptor) param(name string) (Param, bool) {
	return lo.Find(d.Params, func(p Param) bool { return p.Name == name })
}

// Decode validates req against its descriptor and returns the typed arguments. It fails closed:
// unknown operations, unknown parameters, type mismatches and missing required parameters are
// all rejected with a *ValidationError. JSON null counts as absent.
func (c *Catalogue) Decode(req ActionRequest) (Args, error) {
	d, ok := c.Lookup(req.Name)
	if !ok {
		return nil, &ValidationError{Operation: req.Name, Problem: "unknown operation"}
	}

	clean := make(map[string]any, len(req.Args))
	for name, v := range req.Args {
		p, ok := d.param(name)
		if !ok {
			return nil, &ValidationError{Operation: d.Name, Param: name, Problem: "unknown parameter"}
		}
		if v == nil {
			continue
		}
		switch p.Type {
		case TypeString:
			if _, ok := v.(string); !ok {
				return nil, &ValidationError{Operation: d.Name, Param: name, Problem: "must be a string"}
			}
		case TypeBoolean:
			if _, ok := v.(bool); !ok {
				return nil, &ValidationError{Operation: d.Name, Param: name, Problem: "must be a boolean"}
			}
		}
		clean[name] = v
	}

	for _, name := range d.RequiredParams() {
		v, ok := clean[name]
		if !ok {
			return nil, &ValidationError{Operation: d.Name, Param: name, Problem: "is required"}
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return nil, &ValidationError{Operation: d.Name, Param: name, Problem: "is required"}
		}
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, &ValidationError{Operation: d.Name, Problem: "arguments are not serializable"}
	}
	ptr := reflect.New(d.argsType)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, &ValidationError{Operation: d.Name, Problem: "arguments do not match the schema"}
	}
	return ptr.Elem().Interface().(Args), nil
}

// ValidationError reports a malformed action request or argument.
type ValidationError struct {
	Operation string
	Param     string
	Problem   string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Problem)
	}
	return fmt.Sprintf("%s: %s %s", e.Operation, e.Param, e.Problem)
}
