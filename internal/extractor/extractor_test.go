package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/archlint/internal/config"
	"github.com/mvp-joe/archlint/internal/model"
)

// Test Plan for Extractor:
// - Sealed shapes become type declarations with the sealed-variant flag
// - Interfaces with methods become service interfaces
// - Types with implemented supertypes become service implementations
// - Records and all-final types are immutable; optional fields are flagged
// - Test functions, components and hooks are classified by shape
// - Raw async calls are flagged unless the symbol is a client
// - Side effects count distinct non-pure targets
// - FQNs combine module, owner and overload suffix
// - Degraded units carry one info diagnostic and no symbols
// - Layer map: first match wins, "**/" prefixes also match at the root

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(config.Default())
	require.NoError(t, err)
	return e
}

func symbolByName(t *testing.T, unit model.SourceUnit, name string) model.Symbol {
	t.Helper()
	for _, s := range unit.Symbols {
		if s.Name == name {
			return s
		}
	}
	require.Failf(t, "symbol not found", "%s", name)
	return model.Symbol{}
}

func TestExtract_TypeClassification(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	file := &model.SyntaxFile{
		Path:     "src/domain/orders/Order.java",
		Language: model.LanguageJava,
		Module:   "com.acme.orders",
		Decls: []model.SyntaxDecl{
			{Shape: model.ShapeInterface, Name: "Shape", Sealed: true, Permits: []string{"Circle", "Square"}, Line: 3},
			{Shape: model.ShapeInterface, Name: "OrderPort", Methods: []model.MethodSig{{Name: "find", Params: 1, Returns: 1}}, Line: 5},
			{Shape: model.ShapeInterface, Name: "Marker", Line: 7},
			{Shape: model.ShapeType, Name: "OrderService", Implements: []string{"com.acme.orders.OrderPort"}, Line: 9,
				Fields: []model.SyntaxField{{Name: "repo", Type: "Repo", Mutable: false}, {Name: "count", Type: "int", Mutable: true}}},
			{Shape: model.ShapeType, Name: "Money", Record: true, Line: 20},
			{Shape: model.ShapeType, Name: "Customer", Line: 22,
				Fields: []model.SyntaxField{{Name: "email", Type: "Optional<String>", Mutable: false}}},
		},
	}
	unit := e.Extract(file)

	assert.Equal(t, model.LayerDomain, unit.Layer)
	require.Len(t, unit.Symbols, 6)

	shape := symbolByName(t, unit, "Shape")
	assert.Equal(t, model.KindTypeDeclaration, shape.Kind)
	assert.True(t, shape.Flags.Has(model.FlagSealedVariant))

	port := symbolByName(t, unit, "OrderPort")
	assert.Equal(t, model.KindServiceInterface, port.Kind)
	assert.Len(t, port.Methods, 1)

	marker := symbolByName(t, unit, "Marker")
	assert.Equal(t, model.KindTypeDeclaration, marker.Kind)

	svc := symbolByName(t, unit, "OrderService")
	assert.Equal(t, model.KindServiceImplementation, svc.Kind)
	assert.False(t, svc.Flags.Has(model.FlagImmutable), "one mutable field")
	require.Len(t, svc.References, 1)
	assert.Equal(t, model.Reference{Target: "com.acme.orders.OrderPort", Kind: model.EdgeImplements, Line: 9, Qualified: true}, svc.References[0])
	assert.Equal(t, model.LayerDomain, svc.Layer)

	money := symbolByName(t, unit, "Money")
	assert.True(t, money.Flags.Has(model.FlagImmutable))

	customer := symbolByName(t, unit, "Customer")
	assert.True(t, customer.Flags.Has(model.FlagImmutable))
	assert.True(t, customer.Flags.Has(model.FlagOptionalWrapper))
}

func TestExtract_FunctionClassification(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	file := &model.SyntaxFile{
		Path:     "web/src/interface/OrderCard.tsx",
		Language: model.LanguageTSX,
		Module:   "web/src/interface/OrderCard",
		Decls: []model.SyntaxDecl{
			{Shape: model.ShapeFunc, Name: "OrderCard", ReturnsMarkup: true, Params: 3,
				Calls: []model.SyntaxCall{{Name: "useState", Target: "react.useState", Qualified: true}}},
			{Shape: model.ShapeFunc, Name: "useOrders", Statements: 3,
				Calls: []model.SyntaxCall{
					{Name: "useState", Target: "react.useState", Qualified: true, Line: 2},
					{Name: "fetch", Line: 3},
				}},
			{Shape: model.ShapeFunc, Name: "rendersTotal", IsTest: true,
				Calls: []model.SyntaxCall{{Name: "useState"}}},
			{Shape: model.ShapeFunc, Name: "format", ParamTypes: []string{"Optional<string>"}},
		},
	}
	unit := e.Extract(file)

	card := symbolByName(t, unit, "OrderCard")
	assert.Equal(t, model.KindFunction, card.Kind, "markup wins over hook calls")
	assert.True(t, card.Flags.Has(model.FlagComponent))
	assert.Equal(t, 3, card.Params)

	hook := symbolByName(t, unit, "useOrders")
	assert.Equal(t, model.KindHook, hook.Kind)
	assert.True(t, hook.Flags.Has(model.FlagRawAsyncCall))
	assert.Equal(t, 2, hook.SideEffects)
	assert.Equal(t, []model.Reference{
		{Target: "react.useState", Kind: model.EdgeCalls, Line: 2, Qualified: true},
		{Target: "fetch", Kind: model.EdgeCalls, Line: 3},
	}, hook.References)

	test := symbolByName(t, unit, "rendersTotal")
	assert.Equal(t, model.KindTestCase, test.Kind)

	format := symbolByName(t, unit, "format")
	assert.True(t, format.Flags.Has(model.FlagOptionalWrapper))
}

func TestExtract_RawAsyncClientExemption(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	file := &model.SyntaxFile{
		Path:     "internal/infrastructure/payments/client.go",
		Language: model.LanguageGo,
		Module:   "internal/infrastructure/payments",
		Decls: []model.SyntaxDecl{
			{Shape: model.ShapeMethod, Name: "Charge", Receiver: "PaymentClient",
				Calls: []model.SyntaxCall{{Name: "http.Post", Target: "net/http.Post", Qualified: true}}},
			{Shape: model.ShapeFunc, Name: "Notify",
				Calls: []model.SyntaxCall{{Name: "http.Post", Target: "net/http.Post", Qualified: true}}},
		},
	}
	unit := e.Extract(file)

	charge := symbolByName(t, unit, "PaymentClient.Charge")
	assert.False(t, charge.Flags.Has(model.FlagRawAsyncCall), "client owners may call the network")
	assert.Equal(t, "internal/infrastructure/payments.PaymentClient", charge.Owner)
	assert.Equal(t, "internal/infrastructure/payments.PaymentClient.Charge", charge.FQN)
	assert.Equal(t, "Charge", charge.ShortName())

	notify := symbolByName(t, unit, "Notify")
	assert.True(t, notify.Flags.Has(model.FlagRawAsyncCall))
}

func TestExtract_SideEffects(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	decl := model.SyntaxDecl{
		Shape: model.ShapeFunc,
		Name:  "Place",
		Calls: []model.SyntaxCall{
			{Name: "fmt.Errorf", Target: "fmt.Errorf", Qualified: true},
			{Name: "strings.TrimSpace", Target: "strings.TrimSpace", Qualified: true},
			{Name: "repo.Save", Target: "app.repo.Save", Qualified: true},
			{Name: "repo.Save", Target: "app.repo.Save", Qualified: true},
			{Name: "tx.Commit"},
			{Name: "tx.Commit"},
			{Name: "bus.Publish"},
		},
	}
	unit := e.Extract(&model.SyntaxFile{Path: "app/place.go", Module: "app", Decls: []model.SyntaxDecl{decl}})

	place := symbolByName(t, unit, "Place")
	assert.Equal(t, 3, place.SideEffects)
	assert.Len(t, place.References, 7)
}

func TestExtract_Overloads(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	unit := e.Extract(&model.SyntaxFile{
		Path:   "Svc.java",
		Module: "com.acme",
		Decls: []model.SyntaxDecl{
			{Shape: model.ShapeMethod, Name: "audit", Receiver: "Svc", Overload: "(String)"},
			{Shape: model.ShapeMethod, Name: "audit", Receiver: "Svc", Overload: "(String,int)"},
		},
	})
	require.Len(t, unit.Symbols, 2)
	assert.Equal(t, "com.acme.Svc.audit(String)", unit.Symbols[0].FQN)
	assert.Equal(t, "com.acme.Svc.audit(String,int)", unit.Symbols[1].FQN)
}

func TestExtract_GeneratedAndImports(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	file := &model.SyntaxFile{
		Path:      "gen/pb/msg.pb.go",
		Module:    "gen/pb",
		Generated: true,
		Imports:   []model.Import{{Path: "fmt", Line: 3}},
	}
	unit := e.Extract(file)
	assert.True(t, unit.Generated)
	assert.Equal(t, file.Imports, unit.Imports)
	assert.Empty(t, unit.Symbols)
	assert.Equal(t, model.LayerUnclassified, unit.Layer)
}

func TestDegraded(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	unit := e.Degraded("internal/application/broken.go", model.LanguageGo, errors.New("expected '}'"))
	assert.True(t, unit.Degraded())
	assert.Empty(t, unit.Symbols)
	assert.Equal(t, model.LayerApplication, unit.Layer)
	require.Len(t, unit.Diagnostics, 1)
	assert.Equal(t, model.SeverityInfo, unit.Diagnostics[0].Severity)
	assert.Contains(t, unit.Diagnostics[0].Message, "expected '}'")
}

func TestLayerMap(t *testing.T) {
	t.Parallel()
	lm, err := NewLayerMap([]config.LayerMapping{
		{Pattern: "**/domain/legacy/**", Layer: "infrastructure"},
		{Pattern: "**/domain/**", Layer: "domain"},
		{Pattern: "web/**/*.tsx", Layer: "interface"},
	})
	require.NoError(t, err)

	tests := []struct {
		path string
		want model.Layer
	}{
		{"internal/domain/order.go", model.LayerDomain},
		{"domain/order.go", model.LayerDomain},
		{"internal/domain/legacy/old.go", model.LayerInfrastructure},
		{"web/src/Card.tsx", model.LayerInterface},
		{"web/src/card.ts", model.LayerUnclassified},
		{"cmd/main.go", model.LayerUnclassified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lm.Layer(tt.path), tt.path)
	}
}

func TestLayerMap_InvalidLayer(t *testing.T) {
	t.Parallel()
	_, err := NewLayerMap([]config.LayerMapping{{Pattern: "**", Layer: "persistence"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistence")
}

func TestNameSet_MatchCall(t *testing.T) {
	t.Parallel()
	set, err := NewNameSet([]string{"useState", "axios.*", "*Client*"})
	require.NoError(t, err)

	assert.True(t, set.MatchCall("useState"))
	assert.True(t, set.MatchCall("React.useState"))
	assert.True(t, set.Match("axios.get"))
	assert.True(t, set.Match("PaymentClient"))
	assert.False(t, set.Match("useEffect"))
	assert.False(t, set.Match(""))

	var empty *NameSet
	assert.False(t, empty.Match("anything"))
}

func TestBaseType(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Optional", baseType("java.util.Optional<String>"))
	assert.Equal(t, "Order", baseType("*orders.Order"))
	assert.Equal(t, "Option", baseType("mo.Option[int]"))
	assert.Equal(t, "Line", baseType("[]Line"))
}
