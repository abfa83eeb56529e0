package domain

import (
	"net/http"
	"strings"
)

// Headers set by the orchestration engine on every invocation.
const (
	HeaderActivityID      = "X-Activity-ID"
	HeaderEnvironmentID   = "X-Environment-ID"
	HeaderEnvironmentName = "X-Environment-Name"
	HeaderOrganizationID  = "X-Organization-ID"
	HeaderProjectID       = "X-Project-ID"
	HeaderWorkflowToken   = "X-Workflow-Token"
	HeaderEngineEndpoint  = "X-Engine-Endpoint"
	HeaderLogUploadPath   = "X-Activity-File-Upload"
	HeaderStateStoreURL   = "X-State-Store-URL"
	HeaderStateStoreToken = "X-State-Store-Token"

	// HeaderInvocationID is set on responses for log correlation.
	HeaderInvocationID = "X-Invocation-ID"
)

// Keys of the metadata object injected into every request.
const (
	MetaActivityID      = "activityID"
	MetaEnvironmentID   = "environmentID"
	MetaEnvironmentName = "environmentName"
	MetaOrganizationID  = "organizationID"
	MetaProjectID       = "projectID"
)

// InvocationContext describes one invocation. It is built from request headers
// and must not be modified after construction.
type InvocationContext struct {
	ActivityID      string
	EnvironmentID   string
	EnvironmentName string
	OrganizationID  string
	ProjectID       string
	WorkflowToken   string
	EngineEndpoint  string
	LogUploadPath   string
	StateStoreURL   string
	StateStoreToken string
}

// InvocationFromHeaders reads the invocation context from h.
// Missing headers produce empty fields.
func InvocationFromHeaders(h http.Header) InvocationContext {
	get := func(key string) string {
		if h == nil {
			return ""
		}
		return strings.TrimSpace(h.Get(key))
	}
	return InvocationContext{
		ActivityID:      get(HeaderActivityID),
		EnvironmentID:   get(HeaderEnvironmentID),
		EnvironmentName: get(HeaderEnvironmentName),
		OrganizationID:  get(HeaderOrganizationID),
		ProjectID:       get(HeaderProjectID),
		WorkflowToken:   get(HeaderWorkflowToken),
		EngineEndpoint:  get(HeaderEngineEndpoint),
		LogUploadPath:   get(HeaderLogUploadPath),
		StateStoreURL:   get(HeaderStateStoreURL),
		StateStoreToken: get(HeaderStateStoreToken),
	}
}

// Header renders the context back into request headers. Empty fields are skipped.
func (ic InvocationContext) Header() http.Header {
	h := http.Header{}
	set := func(key, value string) {
		if value != "" {
			h.Set(key, value)
		}
	}
	set(HeaderActivityID, ic.ActivityID)
	set(HeaderEnvironmentID, ic.EnvironmentID)
	set(HeaderEnvironmentName, ic.EnvironmentName)
	set(HeaderOrganizationID, ic.OrganizationID)
	set(HeaderProjectID, ic.ProjectID)
	set(HeaderWorkflowToken, ic.WorkflowToken)
	set(HeaderEngineEndpoint, ic.EngineEndpoint)
	set(HeaderLogUploadPath, ic.LogUploadPath)
	set(HeaderStateStoreURL, ic.StateStoreURL)
	set(HeaderStateStoreToken, ic.StateStoreToken)
	return h
}

// Metadata returns the fields a handler is allowed to see.
// Tokens and endpoints stay private to the runtime.
func (ic InvocationContext) Metadata() Object {
	return Object{
		MetaActivityID:      ic.ActivityID,
		MetaEnvironmentID:   ic.EnvironmentID,
		MetaEnvironmentName: ic.EnvironmentName,
		MetaOrganizationID:  ic.OrganizationID,
		MetaProjectID:       ic.ProjectID,
	}
}
