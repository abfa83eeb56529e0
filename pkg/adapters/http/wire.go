package http

import (
	"github.com/aretw0/tendril/pkg/domain"
)

// Headers of the state store protocol. The request and response bodies are
// generated from api/openapi.yaml into api.gen.go.
const (
	HeaderStateToken     = "X-State-Token"
	HeaderOrganizationID = domain.HeaderOrganizationID
	HeaderProjectID      = domain.HeaderProjectID
	HeaderEnvironmentID  = domain.HeaderEnvironmentID
)

// Query parameters of GET requests.
const (
	paramScope          = "scope"
	paramOrganizationID = "organization_id"
	paramProjectID      = "project_id"
	paramEnvironmentID  = "environment_id"
	paramKey            = "key"
)
