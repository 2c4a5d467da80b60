package rules

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gobwas/glob"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/model"
)

var (
	// ErrUnknownCheck indicates a rule naming a check that does not exist
	ErrUnknownCheck = errors.New("unknown check")

	// ErrUnknownParam indicates a parameter the check does not accept
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrInvalidParam indicates a parameter of the wrong type or value
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrInvalidSeverity indicates a severity other than info, warn or error
	ErrInvalidSeverity = errors.New("invalid severity")

	// ErrFixedSeverity indicates a severity override on a check whose
	// severity cannot change
	ErrFixedSeverity = errors.New("severity cannot be overridden")

	// ErrInvalidKind indicates an unknown symbol kind
	ErrInvalidKind = errors.New("invalid symbol kind")

	// ErrInvalidTemplate indicates a message template that fails to parse or render
	ErrInvalidTemplate = errors.New("invalid message template")

	// ErrDuplicateRule indicates two rules sharing an id
	ErrDuplicateRule = errors.New("duplicate rule id")
)

// Rule is a compiled rule. It is immutable after Compile.
type Rule struct {
	ID       string
	Check    string
	Family   Family
	Severity model.Severity

	kinds   map[model.SymbolKind]bool // empty means every kind
	layers  map[model.Layer]bool      // empty means every layer
	message *template.Template
	params  any
	eval    evalFunc

	// Compiled parameter forms.
	pattern        *regexp.Regexp
	layer          model.Layer
	externalLayers map[model.Layer]bool
	externalAllow  []glob.Glob
}

// InScope reports whether a symbol kind and layer fall within the rule's scope.
func (r *Rule) InScope(kind model.SymbolKind, layer model.Layer) bool {
	return r.KindInScope(kind) && r.LayerInScope(layer)
}

// KindInScope reports whether the rule's kind predicate admits kind.
func (r *Rule) KindInScope(kind model.SymbolKind) bool {
	return len(r.kinds) == 0 || r.kinds[kind]
}

// LayerInScope reports whether the rule's layer predicate admits layer.
func (r *Rule) LayerInScope(layer model.Layer) bool {
	return len(r.layers) == 0 || r.layers[layer]
}

// RuleSet is an ordered list of compiled rules.
type RuleSet struct {
	rules []*Rule
}

// Rules returns the compiled rules in definition order.
func (rs *RuleSet) Rules() []*Rule {
	return append([]*Rule(nil), rs.rules...)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Compile validates and compiles rule definitions. Every problem is reported
// as a config.FieldError naming the offending field, e.g.
// "ruleSet[2].params.max"; all of them are returned joined.
func Compile(defs []config.RuleDefinition) (*RuleSet, error) {
	rs := &RuleSet{}
	var errs []error
	seen := make(map[string]int)

	for i, def := range defs {
		prefix := fmt.Sprintf("ruleSet[%d]", i)

		if def.ID == "" {
			errs = append(errs, config.NewFieldError(prefix+".id", config.ErrMissingField, ""))
		} else if j, dup := seen[def.ID]; dup {
			errs = append(errs, config.NewFieldError(prefix+".id", ErrDuplicateRule, "%q already defined by ruleSet[%d]", def.ID, j))
		} else {
			seen[def.ID] = i
		}

		r, ruleErrs := compileRule(def, prefix)
		errs = append(errs, ruleErrs...)
		if r != nil {
			rs.rules = append(rs.rules, r)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rs, nil
}

func compileRule(def config.RuleDefinition, prefix string) (*Rule, []error) {
	var errs []error

	check, ok := catalog[strings.TrimSpace(def.Check)]
	if !ok {
		if def.Check == "" {
			return nil, []error{config.NewFieldError(prefix+".check", config.ErrMissingField, "")}
		}
		return nil, []error{config.NewFieldError(prefix+".check", ErrUnknownCheck, "%q", def.Check)}
	}

	r := &Rule{
		ID:       def.ID,
		Check:    check.name,
		Family:   check.family,
		Severity: check.severity,
		eval:     check.eval,
	}

	if def.Severity != "" {
		sev, ok := model.ParseSeverity(def.Severity)
		switch {
		case !ok:
			errs = append(errs, config.NewFieldError(prefix+".severity", ErrInvalidSeverity, "%q", def.Severity))
		case check.family == FamilyLayering && sev != check.severity:
			// Layering violations are always errors.
			errs = append(errs, config.NewFieldError(prefix+".severity", ErrFixedSeverity, "%s is always %s", check.name, check.severity))
		}
		r.Severity = sev
	}

	for j, k := range def.Kinds {
		kind, ok := model.ParseSymbolKind(k)
		if !ok {
			errs = append(errs, config.NewFieldError(fmt.Sprintf("%s.kinds[%d]", prefix, j), ErrInvalidKind, "%q", k))
			continue
		}
		if r.kinds == nil {
			r.kinds = make(map[model.SymbolKind]bool)
		}
		r.kinds[kind] = true
	}

	for j, l := range def.Layers {
		layer, ok := model.ParseLayer(l)
		if !ok {
			errs = append(errs, config.NewFieldError(fmt.Sprintf("%s.layers[%d]", prefix, j), config.ErrInvalidLayer, "%q", l))
			continue
		}
		if r.layers == nil {
			r.layers = make(map[model.Layer]bool)
		}
		r.layers[layer] = true
	}

	text := check.message
	if def.Message != "" {
		text = def.Message
	}
	tmpl, err := parseMessage(def.ID, text)
	if err != nil {
		errs = append(errs, config.NewFieldError(prefix+".message", ErrInvalidTemplate, "%v", err))
	}
	r.message = tmpl

	if check.params != nil {
		r.params = check.params()
	}
	if err := decodeParams(r.params, def.Params, prefix+".params"); err != nil {
		errs = append(errs, err)
	} else if err := r.prepare(prefix + ".params"); err != nil {
		errs = append(errs, err)
	}

	return r, errs
}

// prepare validates decoded parameters and compiles their derived forms.
func (r *Rule) prepare(field string) error {
	switch p := r.params.(type) {
	case *layerDirectionParams:
		for j, l := range p.ExternalLayers {
			layer, ok := model.ParseLayer(l)
			if !ok {
				return config.NewFieldError(fmt.Sprintf("%s.externalLayers[%d]", field, j), config.ErrInvalidLayer, "%q", l)
			}
			if r.externalLayers == nil {
				r.externalLayers = make(map[model.Layer]bool)
			}
			r.externalLayers[layer] = true
		}
		for j, pattern := range p.ExternalAllow {
			g, err := glob.Compile(pattern)
			if err != nil {
				return config.NewFieldError(fmt.Sprintf("%s.externalAllow[%d]", field, j), config.ErrInvalidPattern, "%q: %v", pattern, err)
			}
			r.externalAllow = append(r.externalAllow, g)
		}

	case *sideEffectParams:
		if p.Max < 0 {
			return config.NewFieldError(field+".max", ErrInvalidParam, "must be >= 0, got %d", p.Max)
		}

	case *maxParamsParams:
		if p.Max < 0 {
			return config.NewFieldError(field+".max", ErrInvalidParam, "must be >= 0, got %d", p.Max)
		}

	case *namePatternParams:
		if p.Pattern == "" {
			return config.NewFieldError(field+".pattern", config.ErrMissingField, "")
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return config.NewFieldError(field+".pattern", ErrInvalidParam, "%v", err)
		}
		r.pattern = re

	case *hookPrefixParams:
		if p.Prefix == "" {
			return config.NewFieldError(field+".prefix", config.ErrMissingField, "")
		}

	case *serviceImplLayerParams:
		layer, ok := model.ParseLayer(p.Layer)
		if !ok {
			return config.NewFieldError(field+".layer", config.ErrInvalidLayer, "%q", p.Layer)
		}
		r.layer = layer
	}
	return nil
}

// decodeParams binds raw rule parameters onto target one key at a time so
// that errors name the exact parameter. Keys match tags case-insensitively
// because configuration keys may arrive lowercased.
func decodeParams(target any, raw map[string]any, field string) error {
	if len(raw) == 0 {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var names []string
	if target != nil {
		names = paramNames(target)
	}

	for _, key := range keys {
		name := ""
		for _, n := range names {
			if strings.EqualFold(n, key) {
				name = n
				break
			}
		}
		if name == "" {
			if len(names) == 0 {
				return config.NewFieldError(field+"."+key, ErrUnknownParam, "check takes no parameters")
			}
			return config.NewFieldError(field+"."+key, ErrUnknownParam, "accepted: %s", strings.Join(names, ", "))
		}

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:  mapstructure.DecodeHookFuncKind(integralFloatHook),
			ErrorUnused: true,
			Result:      target,
			TagName:     "mapstructure",
		})
		if err != nil {
			return err
		}
		if err := decoder.Decode(map[string]any{name: raw[key]}); err != nil {
			return config.NewFieldError(field+"."+name, ErrInvalidParam, "%v", err)
		}
	}
	return nil
}

// integralFloatHook rejects fractional numbers bound to integer parameters;
// mapstructure would otherwise truncate them.
func integralFloatHook(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.Float64 && from != reflect.Float32 {
		return data, nil
	}
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f := reflect.ValueOf(data).Float()
		if f != float64(int64(f)) {
			return nil, fmt.Errorf("expected an integer, got %v", f)
		}
	}
	return data, nil
}

// paramNames lists the mapstructure tags of a parameter struct.
func paramNames(params any) []string {
	t := reflect.TypeOf(params)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" {
			names = append(names, tag)
		}
	}
	return names
}

// MessageData is the value rule message templates render against.
type MessageData struct {
	RuleID      string
	Symbol      string
	Kind        string
	Unit        string
	Layer       string
	TargetLayer string
	Target      string
	Detail      string
	Value       float64
	Limit       float64
}

var messageFuncs = template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
}

// parseMessage parses a template and renders it once against empty data so
// references to unknown fields fail at load time.
func parseMessage(id, text string) (*template.Template, error) {
	tmpl, err := template.New(id).Funcs(messageFuncs).Parse(text)
	if err != nil {
		return nil, err
	}
	if err := tmpl.Execute(io.Discard, MessageData{}); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// violation renders a violation of r.
func (r *Rule) violation(unit string, line int, data MessageData) model.Violation {
	data.RuleID = r.ID
	data.Unit = unit

	var b strings.Builder
	if err := r.message.Execute(&b, data); err != nil {
		b.Reset()
		fmt.Fprintf(&b, "%s: %s (message template failed: %v)", r.ID, data.Symbol, err)
	}

	return model.Violation{
		RuleID:   r.ID,
		Severity: r.Severity,
		Unit:     unit,
		Line:     line,
		Symbol:   data.Symbol,
		Message:  b.String(),
	}
}
