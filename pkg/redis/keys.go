package redis

import "strings"

const defaultNamespace = "sf"

// Keyspace builds colon-separated keys under a shared namespace so several
// deployments can share one Redis database.
type Keyspace struct {
	namespace string
}

func NewKeyspace(namespace string) Keyspace {
	if namespace = strings.TrimSpace(namespace); namespace == "" {
		namespace = defaultNamespace
	}
	return Keyspace{namespace: namespace}
}

func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.join("idempotency", scope, id)
}

func (k Keyspace) RateLimitKey(scope string) string {
	return k.join("rate_limit", scope)
}

func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.join("session", "access", accessID)
}

// LockKey names the key guarding a singleton job.
func (k Keyspace) LockKey(name string) string {
	return k.join("lock", name)
}

// join drops blank segments.
func (k Keyspace) join(parts ...string) string {
	var b strings.Builder
	if k.namespace == "" {
		b.WriteString(defaultNamespace)
	} else {
		b.WriteString(k.namespace)
	}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
