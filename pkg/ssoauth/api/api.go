// Package api is the HTTP surface (C9): fiber handlers translating the
// endpoint table (spec.md §6) onto the C6 authenticator and C7 engine.
//
// Grounded on the teacher's cmd/servier.go wiring (recover/requestid/
// cors/logger middleware, globalErrorHandler-over-errx) and the
// thin-handler-over-service shape of pkg/iam/apikey/apikeysrv: a
// Handlers value holds the engine/store/authenticator and every route
// is handler -> authenticate -> engine call -> DTO, with no business
// logic duplicated at this layer.
package api

import (
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/authn"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/engine"
	oa "github.com/Abraxas-365/manifesto/pkg/ssoauth/oauth2"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

// oauth2StateTTL bounds how long a client has to complete the
// redirect-based OAuth2 dance before its state token expires.
const oauth2StateTTL = 10 * time.Minute

// Deps wires the collaborators a Handlers value needs. OAuth2Providers
// may be nil or empty if no provider is configured for this deployment:
// the provider routes then answer NotFound. A nil OAuth2States makes
// them answer with an Internal error.
type Deps struct {
	Store           store.Store
	Engine          *engine.Engine
	Authn           *authn.Authenticator
	OAuth2Providers map[oa.ProviderName]*oa.Provider
	OAuth2States    oa.StateManager
}

type Handlers struct {
	store  store.Store
	engine *engine.Engine
	authn  *authn.Authenticator
	oauth  map[oa.ProviderName]*oa.Provider
	states oa.StateManager
}

func New(deps Deps) *Handlers {
	return &Handlers{
		store:  deps.Store,
		engine: deps.Engine,
		authn:  deps.Authn,
		oauth:  deps.OAuth2Providers,
		states: deps.OAuth2States,
	}
}
