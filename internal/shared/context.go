package shared

import "context"

type operatorContextKey struct{}

// ContextWithOperator stores the authenticated operator name in context.
func ContextWithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, operator)
}

// OperatorFromContext extracts the operator name, or "system" outside a request.
func OperatorFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operatorContextKey{}).(string); ok && op != "" {
		return op
	}
	return "system"
}
