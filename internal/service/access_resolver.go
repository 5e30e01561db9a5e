package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/upstream"
	apperrors "github.com/spec-kit/token-authority/pkg/util/errorutil"
)

// PermissionChecker asks the permission authority whether an identity holds a
// set of permissions within its owning service.
type PermissionChecker interface {
	Has(ctx context.Context, identity int64, service string, permissions []string) (*upstream.PermissionResult, error)
}

// IdentityDirectory resolves "describe this identity" lookups against the
// service a token names as its owner.
type IdentityDirectory interface {
	Whoisthis(ctx context.Context, service string, identity *int64) (json.RawMessage, error)
}

// AccessDecision is the combined outcome of a successful resolution.
type AccessDecision struct {
	Claims      domain.Claims
	Permissions *upstream.PermissionResult
	Whoisthis   json.RawMessage
}

// AccessResolver combines a permission verdict and an identity description
// into one access decision.
type AccessResolver struct {
	permissions PermissionChecker
	identities  IdentityDirectory
}

// NewAccessResolver builds the resolver.
func NewAccessResolver(permissions PermissionChecker, identities IdentityDirectory) *AccessResolver {
	return &AccessResolver{permissions: permissions, identities: identities}
}

// Resolve launches the permission check and the identity lookup concurrently
// and joins both before deciding. The two calls never cancel each other; a
// discarded identity description is the accepted price of the latency win
// over sequential calls.
//
// Decision order after the join: permission-check failure propagates first,
// then a denial (identity result discarded in both cases), then an
// identity-lookup failure; only a full success combines the three parts.
func (r *AccessResolver) Resolve(ctx context.Context, requested []string, claims domain.Claims) (*AccessDecision, error) {
	var (
		wg         sync.WaitGroup
		permResult *upstream.PermissionResult
		permErr    error
		whoResult  json.RawMessage
		whoErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		permResult, permErr = r.checkPermissions(ctx, requested, claims)
	}()
	go func() {
		defer wg.Done()
		whoResult, whoErr = r.lookupIdentity(ctx, claims)
	}()
	wg.Wait()

	if permErr != nil {
		return nil, permErr
	}
	if !permResult.Has {
		return nil, apperrors.NewAccessDenied(permResult.Detail)
	}
	if whoErr != nil {
		return nil, whoErr
	}

	return &AccessDecision{
		Claims:      claims,
		Permissions: permResult,
		Whoisthis:   whoResult,
	}, nil
}

// checkPermissions consults the authority only when the caller requested
// permissions and the claims carry both identity and service. Anything else
// is an automatic grant with an empty permission list.
func (r *AccessResolver) checkPermissions(ctx context.Context, requested []string, claims domain.Claims) (*upstream.PermissionResult, error) {
	identity, hasIdentity := claims.Identity()
	service, hasService := claims.Service()

	if len(requested) == 0 || !hasIdentity || !hasService {
		return &upstream.PermissionResult{Has: true, Permissions: []string{}}, nil
	}
	return r.permissions.Has(ctx, identity, service, requested)
}

func (r *AccessResolver) lookupIdentity(ctx context.Context, claims domain.Claims) (json.RawMessage, error) {
	service, _ := claims.Service()

	var identity *int64
	if id, ok := claims.Identity(); ok {
		identity = &id
	}
	return r.identities.Whoisthis(ctx, service, identity)
}
