package providers

import (
	"context"
	"testing"
)

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()

	if _, ok := PrincipalFromContext(ctx); ok {
		t.Error("PrincipalFromContext() on empty context should report false")
	}
	if got := UsernameFromContext(ctx); got != "" {
		t.Errorf("UsernameFromContext() = %q, want empty", got)
	}

	ctx = WithPrincipal(ctx, &Principal{Username: "alice", DisplayName: "Alice"})
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatal("PrincipalFromContext() should find the principal")
	}
	if p.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want %q", p.DisplayName, "Alice")
	}
	if got := UsernameFromContext(ctx); got != "alice" {
		t.Errorf("UsernameFromContext() = %q, want %q", got, "alice")
	}

	// A nil principal counts as absent
	if _, ok := PrincipalFromContext(WithPrincipal(context.Background(), nil)); ok {
		t.Error("nil principal should not be reported")
	}
}
