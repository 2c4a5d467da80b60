package config

// Config represents the complete archlint configuration.
// It can be loaded from archlint.yaml with environment variable overrides.
type Config struct {
	MinCoverageDomain      float64          `yaml:"minCoverageDomain" mapstructure:"minCoverageDomain"`           // line/branch floor for domain units
	MinCoverageApplication float64          `yaml:"minCoverageApplication" mapstructure:"minCoverageApplication"` // line/branch floor for application units
	LayerMap               []LayerMapping   `yaml:"layerMap" mapstructure:"layerMap"`                             // ordered, first match wins
	RuleSet                []RuleDefinition `yaml:"ruleSet" mapstructure:"ruleSet"`
	ConcurrencyLimit       int              `yaml:"concurrencyLimit" mapstructure:"concurrencyLimit"` // 0 means GOMAXPROCS
	CoverageFile           string           `yaml:"coverageFile" mapstructure:"coverageFile"`
	Paths                  PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Extraction             ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Output                 OutputConfig     `yaml:"output" mapstructure:"output"`
}

// LayerMapping assigns a layer to every unit whose path matches Pattern.
type LayerMapping struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Layer   string `yaml:"layer" mapstructure:"layer"`
}

// RuleDefinition is the declarative, uncompiled form of a rule.
type RuleDefinition struct {
	ID       string         `yaml:"id" mapstructure:"id"`
	Check    string         `yaml:"check" mapstructure:"check"`
	Severity string         `yaml:"severity" mapstructure:"severity"`
	Kinds    []string       `yaml:"kinds" mapstructure:"kinds"`   // empty means every kind
	Layers   []string       `yaml:"layers" mapstructure:"layers"` // empty means every layer
	Message  string         `yaml:"message" mapstructure:"message"`
	Params   map[string]any `yaml:"params" mapstructure:"params"`
}

// PathsConfig defines which files to scan and which to ignore.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for source files
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to ignore
}

// ExtractionConfig holds the structural criteria the extractor classifies by.
// Every entry is a glob matched against a call target or symbol name.
type ExtractionConfig struct {
	HookPrimitives   []string `yaml:"hookPrimitives" mapstructure:"hookPrimitives"`
	RawAsyncTargets  []string `yaml:"rawAsyncTargets" mapstructure:"rawAsyncTargets"`
	ClientSymbols    []string `yaml:"clientSymbols" mapstructure:"clientSymbols"`
	PureCalls        []string `yaml:"pureCalls" mapstructure:"pureCalls"`
	OptionalWrappers []string `yaml:"optionalWrappers" mapstructure:"optionalWrappers"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // "text", "json" or "markdown"
	File   string `yaml:"file" mapstructure:"file"`     // empty means stdout
}

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		MinCoverageDomain:      0.90,
		MinCoverageApplication: 0.90,
		LayerMap: []LayerMapping{
			{Pattern: "**/domain/**", Layer: "domain"},
			{Pattern: "**/application/**", Layer: "application"},
			{Pattern: "**/infrastructure/**", Layer: "infrastructure"},
			{Pattern: "**/interface/**", Layer: "interface"},
			{Pattern: "**/shared/**", Layer: "shared"},
		},
		RuleSet:          DefaultRuleSet(),
		ConcurrencyLimit: 0,
		Paths: PathsConfig{
			Include: []string{
				"**/*.go",
				"**/*.java",
				"**/*.ts",
				"**/*.tsx",
			},
			Ignore: []string{
				"node_modules/**",
				"**/node_modules/**",
				"vendor/**",
				".git/**",
				"dist/**",
				"build/**",
				"target/**",
				"**/*.d.ts",
			},
		},
		Extraction: ExtractionConfig{
			HookPrimitives: []string{
				"useState",
				"useEffect",
				"useContext",
				"useReducer",
				"useMemo",
				"useCallback",
				"useRef",
				"useLayoutEffect",
			},
			RawAsyncTargets: []string{
				"fetch",
				"axios",
				"axios.*",
				"http.Get",
				"http.Post",
				"http.DefaultClient.*",
				"HttpClient.newHttpClient",
			},
			ClientSymbols: []string{
				"*Client*",
				"*Gateway*",
			},
			PureCalls: []string{
				"fmt.Sprint*",
				"fmt.Errorf",
				"errors.*",
				"strings.*",
				"strconv.*",
				"sort.*",
				"slices.*",
				"maps.*",
				"math.*",
				"Math.*",
				"Object.keys",
				"Object.values",
				"Object.entries",
				"JSON.stringify",
				"String",
				"Number",
				"Boolean",
				"List.of",
				"Map.of",
				"Objects.*",
			},
			OptionalWrappers: []string{
				"Optional",
				"java.util.Optional",
			},
		},
		Output: OutputConfig{
			Format: FormatText,
		},
	}
}

// DefaultRuleSet is the rule set applied when the configuration names none.
func DefaultRuleSet() []RuleDefinition {
	return []RuleDefinition{
		{
			ID:       "layer-direction",
			Check:    "layer-direction",
			Severity: "error",
		},
		{
			ID:       "max-side-effects",
			Check:    "max-side-effects",
			Severity: "warn",
			Params:   map[string]any{"max": 10},
		},
		{
			ID:       "component-params",
			Check:    "max-params",
			Severity: "warn",
			Params:   map[string]any{"max": 5, "componentsOnly": true},
		},
		{
			ID:       "raw-async-call",
			Check:    "raw-async-call",
			Severity: "warn",
		},
		{
			ID:       "optional-wrapper",
			Check:    "optional-wrapper",
			Severity: "warn",
		},
		{
			ID:       "prefer-immutable",
			Check:    "prefer-immutable",
			Severity: "info",
			Layers:   []string{"domain"},
			Kinds:    []string{"type-declaration"},
		},
		{
			ID:       "hook-prefix",
			Check:    "hook-prefix",
			Severity: "warn",
			Kinds:    []string{"hook-like-function"},
		},
		{
			ID:       "service-impl-layer",
			Check:    "service-impl-layer",
			Severity: "warn",
			Kinds:    []string{"service-implementation"},
		},
		{
			ID:       "coverage-threshold",
			Check:    "coverage-threshold",
			Severity: "error",
		},
	}
}
