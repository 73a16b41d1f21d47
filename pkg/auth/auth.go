// Package auth resolves WOPI access tokens into principals and derives the
// permission flags reported to the client.
package auth

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"slices"
	"strings"
)

// ErrInvalidToken is returned for tokens that cannot be resolved.
var ErrInvalidToken = errors.New("invalid access token")

// Permissions a principal may hold.
const (
	PermWrite  = "write"
	PermRename = "rename"
	PermCreate = "create"
	PermDelete = "delete"
)

// AllPermissions is every permission, in canonical order.
var AllPermissions = []string{PermWrite, PermRename, PermCreate, PermDelete}

// Principal is the user on whose behalf the client acts.
type Principal struct {
	UserID       string
	FriendlyName string
	Email        string
	Permissions  []string

	// Anonymous is set when the request carried no token and anonymous
	// access is allowed. Anonymous principals are read-only.
	Anonymous bool
}

// AnonymousPrincipal returns the principal used for token-less requests.
func AnonymousPrincipal() *Principal {
	return &Principal{Anonymous: true, FriendlyName: "Guest"}
}

// Can reports whether the principal holds perm.
func (p *Principal) Can(perm string) bool {
	if p == nil || p.Anonymous {
		return false
	}
	return slices.Contains(p.Permissions, perm)
}

// TokenResolver maps an opaque access token to a principal.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
}

// TokenFromRequest extracts the access token. The query parameter is
// preferred; a form field in an urlencoded POST body and an
// "Authorization: Bearer" header are fallbacks. Other bodies are never
// read, so file content is not consumed.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token
	}

	if r.Method == http.MethodPost {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/x-www-form-urlencoded" {
			if token := r.PostFormValue("access_token"); token != "" {
				return token
			}
		}
	}

	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
