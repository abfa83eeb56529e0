package domain

import (
	"fmt"
	"strings"
)

// Scope is the namespace level a state key belongs to.
// Scopes nest, but keys in different scopes are stored independently.
type Scope int

const (
	ScopeOrganization Scope = iota + 1
	ScopeProject
	ScopeEnvironment
)

func (s Scope) String() string {
	switch s {
	case ScopeOrganization:
		return "organization"
	case ScopeProject:
		return "project"
	case ScopeEnvironment:
		return "environment"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseScope accepts the String form of a scope ("org", "env" are also accepted).
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "organization", "org":
		return ScopeOrganization, nil
	case "project":
		return ScopeProject, nil
	case "environment", "env":
		return ScopeEnvironment, nil
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

// MarshalText encodes the scope by name.
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a scope name.
func (s *Scope) UnmarshalText(text []byte) error {
	parsed, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Namespace is a scope resolved against concrete ids.
// Ids deeper than the scope level are always empty.
type Namespace struct {
	Scope          Scope  `json:"scope"`
	OrganizationID string `json:"organization_id"`
	ProjectID      string `json:"project_id,omitempty"`
	EnvironmentID  string `json:"environment_id,omitempty"`
}

// Resolve builds the namespace of s for the given invocation.
func (s Scope) Resolve(ic InvocationContext) (Namespace, error) {
	ns := Namespace{Scope: s, OrganizationID: ic.OrganizationID}
	switch s {
	case ScopeOrganization:
	case ScopeProject:
		ns.ProjectID = ic.ProjectID
	case ScopeEnvironment:
		ns.ProjectID = ic.ProjectID
		ns.EnvironmentID = ic.EnvironmentID
	default:
		return Namespace{}, fmt.Errorf("resolve %s: %w", s, ErrIncompleteScope)
	}
	if err := ns.Validate(); err != nil {
		return Namespace{}, err
	}
	return ns, nil
}

// Validate checks that every id required by the scope level is present.
func (n Namespace) Validate() error {
	missing := n.OrganizationID == ""
	switch n.Scope {
	case ScopeOrganization:
	case ScopeProject:
		missing = missing || n.ProjectID == ""
	case ScopeEnvironment:
		missing = missing || n.ProjectID == "" || n.EnvironmentID == ""
	default:
		missing = true
	}
	if missing {
		return fmt.Errorf("%s scope: %w", n.Scope, ErrIncompleteScope)
	}
	return nil
}

// String is a stable, unique rendering used as a storage prefix.
func (n Namespace) String() string {
	switch n.Scope {
	case ScopeProject:
		return "org/" + n.OrganizationID + "/project/" + n.ProjectID
	case ScopeEnvironment:
		return "org/" + n.OrganizationID + "/project/" + n.ProjectID + "/env/" + n.EnvironmentID
	default:
		return "org/" + n.OrganizationID
	}
}

// NoVersion is the version of an absent key. Stored entries start at version 1.
const NoVersion uint32 = 0

// Entry is a versioned value in the state store.
type Entry struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Version uint32 `json:"version"`
}

// Exists reports whether the entry was found in the store.
func (e Entry) Exists() bool {
	return e.Version != NoVersion
}
