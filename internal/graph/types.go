package graph

import (
	"fmt"

	"github.com/mvp-joe/archlint/internal/model"
)

// NodeKind represents the type of a graph node.
type NodeKind string

const (
	NodeSymbol   NodeKind = "symbol"   // Declaration inside an analyzed unit
	NodeModule   NodeKind = "module"   // Package, namespace or TS module
	NodeExternal NodeKind = "external" // Unresolved reference target
)

// Node represents a code entity with its source location.
type Node struct {
	ID     string           `json:"id"`             // Fully qualified name (e.g., "internal/orders.sqlRepo.Save")
	Kind   NodeKind         `json:"kind"`           // Type of node
	Symbol model.SymbolKind `json:"symbol"`         // Symbol kind, meaningful for NodeSymbol only
	Layer  model.Layer      `json:"layer"`          // Unclassified for external nodes
	Unit   string           `json:"unit,omitempty"` // Declaring unit path; first unit by path for modules
	Line   int              `json:"line"`           // Declaration line (1-indexed), 0 for modules
}

// External reports whether the node is an unresolved sink.
func (n Node) External() bool {
	return n.Kind == NodeExternal
}

// Sentinel errors for invariant violations. Both wrap model.ErrUnsoundModel.
var (
	ErrDuplicateSymbol = fmt.Errorf("%w: duplicate symbol", model.ErrUnsoundModel)
	ErrImplementsCycle = fmt.Errorf("%w: implements cycle", model.ErrUnsoundModel)
)
