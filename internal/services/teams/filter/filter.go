// Package filter provides AIP-160 filter expression parsing and SQL translation
// for admin team listings.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// TeamDeclarations returns the field declarations for team filtering.
func TeamDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("leader_id", filtering.TypeString),
		filtering.DeclareIdent("name", filtering.TypeString),
		filtering.DeclareIdent("location_ref", filtering.TypeString),
	)
}

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "status = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// IsEmpty reports whether the condition carries no clause.
func (c SQLCondition) IsEmpty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

// fieldMapping maps filter field names to SQL column names.
var fieldMapping = map[string]string{
	"status":       "status",
	"leader_id":    "leader_id",
	"name":         "name",
	"location_ref": "location_ref",
}

// ParseTeamFilter parses an AIP-160 filter expression and returns a SQL condition.
// Returns an empty condition for an empty filter string.
func ParseTeamFilter(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	decls, err := TeamDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}

	return translateExpr(parsed.CheckedExpr.Expr)
}

// translateExpr translates a CEL expression to a SQL condition.
func translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

// translateCall translates a CEL function call to a SQL condition.
func translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return translateLogical(call.Args, "AND")
	case "_||_", "OR":
		return translateLogical(call.Args, "OR")
	case "_==_", "=":
		return translateComparison(call.Args, "=")
	case "_!=_", "!=":
		return translateComparison(call.Args, "!=")
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateLogical(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	right, err := translateExpr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	column, ok := fieldMapping[field]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", field)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	default:
		return nil, fmt.Errorf("expected constant, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}
