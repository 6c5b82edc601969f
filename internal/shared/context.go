package shared

import "context"

// Workspace identifies the console workspace and division a request acts for.
type Workspace struct {
	ID         string
	DivisionID string
}

type workspaceContextKey struct{}

// ContextWithWorkspace stores the workspace in context.
func ContextWithWorkspace(ctx context.Context, ws Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey{}, ws)
}

// WorkspaceFromContext extracts the workspace from context.
func WorkspaceFromContext(ctx context.Context) (Workspace, bool) {
	ws, ok := ctx.Value(workspaceContextKey{}).(Workspace)
	return ws, ok
}
