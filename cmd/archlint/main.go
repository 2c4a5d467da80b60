package main

import (
	"context"
	"os"

	"github.com/mvp-joe/archlint/internal/cli"
	"github.com/mvp-joe/archlint/internal/frontend"
	"github.com/mvp-joe/archlint/internal/scanner"
)

func main() {
	deps := cli.Dependencies{
		Parsers: []scanner.Parser{
			frontend.NewGoParser(),
			frontend.NewJavaParser(),
			frontend.NewTypeScriptParser(),
		},
	}
	os.Exit(cli.Execute(context.Background(), deps, os.Args[1:]))
}
