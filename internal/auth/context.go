package auth

import "context"

type contextKey string

const contextKeyOperator contextKey = "auth.operator"

// WithOperator stores the authenticated operator in context.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, contextKeyOperator, operator)
}

// OperatorFromContext extracts the operator from context.
func OperatorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if operator, ok := ctx.Value(contextKeyOperator).(string); ok {
		return operator
	}
	return ""
}
