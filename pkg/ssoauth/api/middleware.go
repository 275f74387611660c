package api

import (
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/audit"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/authn"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/gofiber/fiber/v2"
)

const localsAuthResult = "ssoauth.authn_result"

// authenticate resolves the Authorization header — sent verbatim, no
// scheme prefix assumed per spec §6 — plus the request's audit meta,
// and stores the result in c.Locals for downstream handlers. A missing
// User-Agent or remote address fails closed before any engine call,
// mirroring spec §6's "audit meta extraction" gate.
func (h *Handlers) authenticate(c *fiber.Ctx) error {
	ua := c.Get(fiber.HeaderUserAgent)
	remote := c.IP()
	if ua == "" || remote == "" {
		return ssoerr.BadRequest("missing user-agent or remote address")
	}
	var forwarded *string
	if fwd := c.Get("Forwarded"); fwd != "" {
		forwarded = &fwd
	}

	result, err := h.authn.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization), audit.Meta{
		UserAgent: ua,
		Remote:    remote,
		Forwarded: forwarded,
	})
	if err != nil {
		return err
	}
	c.Locals(localsAuthResult, result)
	return c.Next()
}

func authResult(c *fiber.Ctx) authn.Result {
	r, _ := c.Locals(localsAuthResult).(authn.Result)
	return r
}

// requireServiceKey returns the authenticated service and its audit
// builder for endpoints the endpoint table marks "service key" authz.
func requireServiceKey(c *fiber.Ctx) (model.Service, *audit.Builder, error) {
	r := authResult(c)
	if r.Kind != authn.Service {
		return model.Service{}, nil, ssoerr.Unauthorised("service key required")
	}
	return *r.Service, r.Audit, nil
}

// requireServiceOrRootKey backs the `/v1/key`, `/v1/service`, `/v1/user`
// CRUD surface, which spec §6 authorises for either a service's own key
// or the root key.
func requireServiceOrRootKey(c *fiber.Ctx) (authn.Result, error) {
	r := authResult(c)
	if r.Kind != authn.Service && r.Kind != authn.Root {
		return authn.Result{}, ssoerr.Unauthorised("service or root key required")
	}
	return r, nil
}
