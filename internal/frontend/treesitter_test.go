package frontend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/archlint/internal/model"
)

// Test Plan for the tree-sitter front-ends:
// - Java: package becomes the module; imports recorded
// - Java: sealed interfaces with permits, records, final fields, implements
// - Java: methods belong to their class; @Test methods are flagged
// - Java: overloaded methods receive distinct suffixes
// - Java: calls through imports and on this are qualified
// - TypeScript: module is the path without extension; relative imports resolve
// - TypeScript: union aliases are sealed; readonly fields are immutable
// - TypeScript: merged declarations yield one declaration per name
// - TSX: components return markup; destructured props count as parameters
// - TSX: hook calls are recorded by name
// - Broken files fail with ErrSyntax
// - baseTypeName and overloadSuffixes helpers

const javaSample = `package com.acme.orders;

import com.acme.billing.Invoice;
import java.util.Optional;

public sealed interface Shape permits Circle, Square {}

public record Money(long cents, String currency) {}

public class OrderService implements OrderPort {
    private final Invoice invoice;
    private int counter;

    public Optional<Order> find(String id) {
        if (id == null) {
            return Optional.empty();
        }
        this.audit(id);
        return Invoice.lookup(id);
    }

    void audit(String id) {}

    void audit(String id, int level) {}
}
`

func TestJavaParser_Declarations(t *testing.T) {
	t.Parallel()
	file, err := NewJavaParser().Parse(context.Background(), "src/main/java/com/acme/orders/OrderService.java", []byte(javaSample))
	require.NoError(t, err)

	assert.Equal(t, model.LanguageJava, file.Language)
	assert.Equal(t, "com.acme.orders", file.Module)
	require.Len(t, file.Imports, 2)
	assert.Equal(t, "com.acme.billing.Invoice", file.Imports[0].Path)
	assert.Equal(t, 3, file.Imports[0].Line)

	shape := findDecl(t, file, "Shape")
	assert.True(t, shape.Sealed)
	assert.Equal(t, []string{"Circle", "Square"}, shape.Permits)

	money := findDecl(t, file, "Money")
	assert.True(t, money.Record)

	svc := findDecl(t, file, "OrderService")
	assert.Equal(t, model.ShapeType, svc.Shape)
	assert.Equal(t, []string{"com.acme.orders.OrderPort"}, svc.Implements)
	require.Len(t, svc.Fields, 2)
	assert.False(t, svc.Fields[0].Mutable)
	assert.True(t, svc.Fields[1].Mutable)

	find := findDecl(t, file, "find")
	assert.Equal(t, model.ShapeMethod, find.Shape)
	assert.Equal(t, "OrderService", find.Receiver)
	assert.Equal(t, 1, find.Params)
	assert.Equal(t, []string{"String"}, find.ParamTypes)
	assert.Equal(t, 1, find.Branches)
	assert.Empty(t, find.Overload)

	var audit, lookup model.SyntaxCall
	for _, c := range find.Calls {
		switch c.Name {
		case "this.audit":
			audit = c
		case "Invoice.lookup":
			lookup = c
		}
	}
	assert.Equal(t, "com.acme.orders.OrderService.audit", audit.Target)
	assert.True(t, audit.Qualified)
	assert.Equal(t, "com.acme.billing.Invoice.lookup", lookup.Target)
	assert.True(t, lookup.Qualified)

	var overloads []string
	for _, d := range file.Decls {
		if d.Name == "audit" {
			overloads = append(overloads, d.Overload)
		}
	}
	assert.Equal(t, []string{"(String)", "(String,int)"}, overloads)
}

func TestJavaParser_TestAnnotation(t *testing.T) {
	t.Parallel()
	src := `package com.acme;

class OrderTest {
    @Test
    void computesTotal() {
        assertEquals(1, 1);
    }
}
`
	file, err := NewJavaParser().Parse(context.Background(), "OrderTest.java", []byte(src))
	require.NoError(t, err)
	assert.True(t, findDecl(t, file, "computesTotal").IsTest)
}

func TestJavaParser_SyntaxError(t *testing.T) {
	t.Parallel()
	_, err := NewJavaParser().Parse(context.Background(), "Broken.java", []byte("class {{{"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)
}

const tsSample = `import { Order } from '../domain/order';
import * as api from './api';

export type Result = Ok | Err;

export interface OrderRepo {
  save(order: Order): void;
  find(id: string): Order;
}

export class HttpOrderRepo implements OrderRepo {
  readonly baseUrl: string;
  retries: number;

  save(order: Order): void {
    api.post(order);
  }

  find(id: string): Order {
    return new Order(id);
  }
}
`

func TestTypeScriptParser_Declarations(t *testing.T) {
	t.Parallel()
	file, err := NewTypeScriptParser().Parse(context.Background(), "src/infrastructure/orderRepo.ts", []byte(tsSample))
	require.NoError(t, err)

	assert.Equal(t, model.LanguageTypeScript, file.Language)
	assert.Equal(t, "src/infrastructure/orderRepo", file.Module)
	require.Len(t, file.Imports, 2)
	assert.Equal(t, "src/domain/order", file.Imports[0].Path)
	assert.Equal(t, "src/infrastructure/api", file.Imports[1].Path)

	result := findDecl(t, file, "Result")
	assert.True(t, result.Sealed)
	assert.Equal(t, []string{"Ok", "Err"}, result.Permits)

	repo := findDecl(t, file, "OrderRepo")
	assert.Equal(t, model.ShapeInterface, repo.Shape)
	assert.Len(t, repo.Methods, 2)

	impl := findDecl(t, file, "HttpOrderRepo")
	assert.Equal(t, []string{"src/infrastructure/orderRepo.OrderRepo"}, impl.Implements)
	require.Len(t, impl.Fields, 2)
	assert.False(t, impl.Fields[0].Mutable)
	assert.True(t, impl.Fields[1].Mutable)

	save := findDecl(t, file, "save")
	assert.Equal(t, "HttpOrderRepo", save.Receiver)
	require.Len(t, save.Calls, 1)
	assert.Equal(t, "api.post", save.Calls[0].Name)
	assert.Equal(t, "src/infrastructure/api.post", save.Calls[0].Target)
	assert.True(t, save.Calls[0].Qualified)

	find := findDecl(t, file, "find")
	require.Len(t, find.Calls, 1)
	assert.Equal(t, "src/domain/order.Order", find.Calls[0].Target)
}

const tsMergeSample = `export interface Order {
  id: string;
}

export interface Order {
  total(): number;
}

interface Cart {
  readonly items: string[];
}

class Cart {
  count(): number {
    return this.items.length;
  }
}
`

func TestTypeScriptParser_DeclarationMerging(t *testing.T) {
	t.Parallel()
	file, err := NewTypeScriptParser().Parse(context.Background(), "src/domain/order.ts", []byte(tsMergeSample))
	require.NoError(t, err)

	count := func(name string) int {
		n := 0
		for _, d := range file.Decls {
			if d.Name == name && d.Receiver == "" {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count("Order"))
	assert.Equal(t, 1, count("Cart"))

	order := findDecl(t, file, "Order")
	assert.Equal(t, model.ShapeInterface, order.Shape)
	assert.Len(t, order.Methods, 1)
	assert.Len(t, order.Fields, 1)

	cart := findDecl(t, file, "Cart")
	assert.Equal(t, model.ShapeType, cart.Shape)
	require.Len(t, cart.Fields, 1)
	assert.False(t, cart.Fields[0].Mutable)

	countMethod := findDecl(t, file, "count")
	assert.Equal(t, "Cart", countMethod.Receiver)
}

const tsxSample = `import { useState } from 'react';

export function OrderCard({ id, title, price }: Props) {
  const [open, setOpen] = useState(false);
  return <div onClick={() => setOpen(!open)}>{title}</div>;
}

export const useOrders = () => {
  const [orders] = useState([]);
  fetch('/orders');
  return orders;
};
`

func TestTypeScriptParser_TSX(t *testing.T) {
	t.Parallel()
	file, err := NewTypeScriptParser().Parse(context.Background(), "src/ui/OrderCard.tsx", []byte(tsxSample))
	require.NoError(t, err)
	assert.Equal(t, model.LanguageTSX, file.Language)

	card := findDecl(t, file, "OrderCard")
	assert.True(t, card.ReturnsMarkup)
	assert.Equal(t, 3, card.Params)

	hook := findDecl(t, file, "useOrders")
	assert.False(t, hook.ReturnsMarkup)
	var names []string
	for _, c := range hook.Calls {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"useState", "fetch"}, names)
	assert.Equal(t, "react.useState", hook.Calls[0].Target)
}

func TestTypeScriptParser_SyntaxError(t *testing.T) {
	t.Parallel()
	_, err := NewTypeScriptParser().Parse(context.Background(), "src/bad.ts", []byte("export function ( {"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestBaseTypeName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Optional", baseTypeName("java.util.Optional<String>"))
	assert.Equal(t, "String", baseTypeName("String[]"))
	assert.Equal(t, "Order", baseTypeName(" Order "))
}

func TestOverloadSuffixes(t *testing.T) {
	t.Parallel()
	got := overloadSuffixes(
		[]string{"a", "b", "a"},
		[][]string{{"int"}, {"String"}, {"java.util.List<String>", "long"}},
	)
	assert.Equal(t, []string{"(int)", "", "(List,long)"}, got)
}
