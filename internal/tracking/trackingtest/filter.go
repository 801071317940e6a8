package trackingtest

import (
	"fmt"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

func displayNameDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("display_name", filtering.TypeString),
	)
}

// parseDisplayNameFilter parses an AIP-160 equality filter on display_name
// and returns the name it selects.
func parseDisplayNameFilter(filterStr string) (string, error) {
	decls, err := displayNameDeclarations()
	if err != nil {
		return "", fmt.Errorf("create declarations: %w", err)
	}

	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return "", fmt.Errorf("parse filter: %w", err)
	}

	return displayNameFromExpr(filter.CheckedExpr.GetExpr())
}

func displayNameFromExpr(e *expr.Expr) (string, error) {
	call := e.GetCallExpr()
	if call == nil {
		return "", fmt.Errorf("unsupported filter expression: %T", e.GetExprKind())
	}
	switch call.GetFunction() {
	case "_==_", "=":
	default:
		return "", fmt.Errorf("unsupported filter function: %s", call.GetFunction())
	}
	args := call.GetArgs()
	if len(args) != 2 {
		return "", fmt.Errorf("expected 2 filter arguments, got %d", len(args))
	}
	ident := args[0].GetIdentExpr()
	if ident == nil || ident.GetName() != "display_name" {
		return "", fmt.Errorf("expected display_name identifier")
	}
	constant := args[1].GetConstExpr()
	if constant == nil {
		return "", fmt.Errorf("expected constant comparand")
	}
	return constant.GetStringValue(), nil
}
