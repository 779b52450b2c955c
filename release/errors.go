package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrAuthentication        = errors.New("authentication failed")
	ErrRepositoryNotFound    = errors.New("repository not found")
	ErrReleaseNotFound       = errors.New("release not found")
	ErrAssetNotFound         = errors.New("asset not found")
	ErrTransport             = errors.New("transport error")
)

// A DependencyError is returned by Probe when something the client needs
// before talking to the API is missing or unusable.
type DependencyError struct {
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("missing required capability: %v", e.Err)
}

func (e *DependencyError) Unwrap() error        { return e.Err }
func (e *DependencyError) Is(target error) bool { return target == ErrDependencyUnavailable }

type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to authenticate with GitHub: %v", e.Err)
}

func (e *AuthError) Unwrap() error        { return e.Err }
func (e *AuthError) Is(target error) bool { return target == ErrAuthentication }

type RepositoryNotFoundError struct {
	Owner string
	Name  string
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository %s/%s doesn't exist", e.Owner, e.Name)
}

func (e *RepositoryNotFoundError) Is(target error) bool { return target == ErrRepositoryNotFound }

type ReleaseNotFoundError struct {
	Owner    string
	Name     string
	Selector Selector
}

func (e *ReleaseNotFoundError) Error() string {
	return fmt.Sprintf("repository %s/%s doesn't have release %s", e.Owner, e.Name, e.Selector)
}

func (e *ReleaseNotFoundError) Is(target error) bool { return target == ErrReleaseNotFound }

type AssetNotFoundError struct {
	Name string
	Tag  string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("release %s has no asset named %q", e.Tag, e.Name)
}

func (e *AssetNotFoundError) Is(target error) bool { return target == ErrAssetNotFound }

// A TransportError wraps any network or IO failure, including unexpected
// API responses (see APIError).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// An APIError describes a response with a status the caller did not expect.
type APIError struct {
	Code   int
	Status string
	Body   []byte
	URL    string
}

type errResponse struct {
	Message string `json:"message"`
	Doc     string `json:"documentation_url"`
}

func (ae *APIError) Error() string {
	var msg errResponse
	json.Unmarshal(ae.Body, &msg)

	if ae.Code == http.StatusForbidden && msg.Message != "" {
		return fmt.Sprintf("%s: %s: %s", ae.Status, msg.Message, msg.Doc)
	}
	return fmt.Sprintf("%s (URL: %s)", ae.Status, ae.URL)
}
