package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

// canonicalize prints op followed by the named fragments in the given order.
// Printing drops comments and normalizes whitespace.
func canonicalize(op *ast.OperationDefinition, fragmentNames []string, fragments map[string]*ast.FragmentDefinition) (string, error) {
	defs := []ast.Node{op}
	for _, name := range fragmentNames {
		frag := fragments[name]
		if frag == nil {
			return "", fmt.Errorf("fragment %q not found", name)
		}
		defs = append(defs, frag)
	}
	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: defs})).(string)
	if !ok {
		return "", fmt.Errorf("operation could not be printed")
	}
	return printed, nil
}

// frameHash hashes length-prefixed parts so ("ab","c") and ("a","bc") differ.
func frameHash(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
