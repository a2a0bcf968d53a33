// Package memory persists long-term assistant memory as namespaced key-value
// pairs. Keys take the form "<namespace>.<name>"; the namespace set is fixed
// so snapshot selection stays deterministic.
package memory

import (
	"context"
	"fmt"
	"strings"
)

// Namespaces allowed for long-term memory keys.
const (
	NamespaceUser       = "user"
	NamespacePreference = "preference"
	NamespaceProject    = "project"
	NamespacePerson     = "person"
	NamespaceTool       = "tool"
)

// Namespaces lists every valid key namespace in a stable order.
func Namespaces() []string {
	return []string{NamespaceUser, NamespacePreference, NamespaceProject, NamespacePerson, NamespaceTool}
}

// Store abstracts durable persistence for long-term memory. Set must not
// return until the backing store has confirmed durability.
type Store interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	// Keys returns every stored key with the given prefix, sorted. An empty
	// prefix returns all keys.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// ValidateKey checks that key is "<namespace>.<name>" with a known namespace.
func ValidateKey(key string) error {
	ns, rest, ok := strings.Cut(key, ".")
	if !ok || rest == "" {
		return fmt.Errorf("memory key %q must be <namespace>.<name>", key)
	}
	for _, valid := range Namespaces() {
		if ns == valid {
			return nil
		}
	}
	return fmt.Errorf("unknown memory namespace %q", ns)
}

// Namespace returns the namespace portion of key, or "" when malformed.
func Namespace(key string) string {
	ns, _, ok := strings.Cut(key, ".")
	if !ok {
		return ""
	}
	return ns
}
