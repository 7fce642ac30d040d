package shared

import "context"

type deskContextKey struct{}

// ContextWithDesk stores the desk scope in context.
func ContextWithDesk(ctx context.Context, desk string) context.Context {
	return context.WithValue(ctx, deskContextKey{}, desk)
}

// DeskFromContext extracts the desk scope from context, empty when absent.
func DeskFromContext(ctx context.Context) string {
	desk, _ := ctx.Value(deskContextKey{}).(string)
	return desk
}
