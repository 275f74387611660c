package api

import (
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/authn"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/password"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
	"github.com/gofiber/fiber/v2"
)

// listParamsFromQuery reads the gt/lt/limit cursor query params shared
// by every list endpoint.
func listParamsFromQuery(c *fiber.Ctx) store.ListParams {
	var p store.ListParams
	if v := c.Query("gt"); v != "" {
		p.Gt = &v
	}
	if v := c.Query("lt"); v != "" {
		p.Lt = &v
	}
	p.Limit = c.QueryInt("limit", 0)
	return p
}

// --- service CRUD ---

func (h *Handlers) ServiceList(c *fiber.Ctx) error {
	if _, err := requireServiceOrRootKey(c); err != nil {
		return err
	}
	svcs, err := h.store.ServiceList(c.UserContext(), listParamsFromQuery(c))
	if err != nil {
		return err
	}
	out := make([]serviceDTO, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, serviceDTOOf(s))
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *Handlers) ServiceCreate(c *fiber.Ctx) error {
	r, err := requireServiceOrRootKey(c)
	if err != nil {
		return err
	}
	if r.Kind != authn.Root {
		return ssoerr.Unauthorised("root key required")
	}
	var req createServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	now := time.Now()
	svc := model.Service{
		ID:                         ssoid.NewServiceID(),
		CreatedAt:                  now,
		UpdatedAt:                  now,
		IsEnabled:                  true,
		Name:                       req.Name,
		URL:                        req.URL,
		ProviderLocalURL:           req.ProviderLocalURL,
		ProviderGithubOAuth2URL:    req.ProviderGithubOAuth2URL,
		ProviderMicrosoftOAuth2URL: req.ProviderMicrosoftOAuth2URL,
	}
	created, err := h.store.ServiceCreate(c.UserContext(), svc)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": serviceDTOOf(created)})
}

func (h *Handlers) ServiceRead(c *fiber.Ctx) error {
	if _, err := requireServiceOrRootKey(c); err != nil {
		return err
	}
	id, err := ssoid.ParseServiceID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	svc, err := h.store.ServiceRead(c.UserContext(), id)
	if err != nil {
		return err
	}
	if svc == nil {
		return ssoerr.NotFound("service not found")
	}
	return c.JSON(fiber.Map{"data": serviceDTOOf(*svc)})
}

func (h *Handlers) ServiceUpdate(c *fiber.Ctx) error {
	r, err := requireServiceOrRootKey(c)
	if err != nil {
		return err
	}
	id, err := ssoid.ParseServiceID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	if r.Kind == authn.Service && r.Service.ID != id {
		return ssoerr.Forbidden("cannot modify another service")
	}
	existing, err := h.store.ServiceRead(c.UserContext(), id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ssoerr.NotFound("service not found")
	}
	var req updateServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	svc := *existing
	if req.IsEnabled != nil {
		svc.IsEnabled = *req.IsEnabled
	}
	if req.Name != nil {
		svc.Name = *req.Name
	}
	if req.URL != nil {
		svc.URL = *req.URL
	}
	if req.ProviderLocalURL != nil {
		svc.ProviderLocalURL = req.ProviderLocalURL
	}
	if req.ProviderGithubOAuth2URL != nil {
		svc.ProviderGithubOAuth2URL = req.ProviderGithubOAuth2URL
	}
	if req.ProviderMicrosoftOAuth2URL != nil {
		svc.ProviderMicrosoftOAuth2URL = req.ProviderMicrosoftOAuth2URL
	}
	svc.UpdatedAt = time.Now()
	updated, err := h.store.ServiceUpdate(c.UserContext(), svc)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceDTOOf(updated)})
}

func (h *Handlers) ServiceDelete(c *fiber.Ctx) error {
	r, err := requireServiceOrRootKey(c)
	if err != nil {
		return err
	}
	id, err := ssoid.ParseServiceID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	if r.Kind == authn.Service && r.Service.ID != id {
		return ssoerr.Forbidden("cannot delete another service")
	}
	if err := h.store.ServiceDelete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- user CRUD ---

func (h *Handlers) UserList(c *fiber.Ctx) error {
	if _, err := requireServiceOrRootKey(c); err != nil {
		return err
	}
	users, err := h.store.UserList(c.UserContext(), listParamsFromQuery(c))
	if err != nil {
		return err
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userDTOOf(u))
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *Handlers) UserCreate(c *fiber.Ctx) error {
	if _, err := requireServiceOrRootKey(c); err != nil {
		return err
	}
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	now := time.Now()
	u := model.User{
		ID:                 ssoid.NewUserID(),
		CreatedAt:          now,
		UpdatedAt:          now,
		IsEnabled:          true,
		Name:               req.Name,
		Email:              req.Email,
		Locale:             req.Locale,
		Timezone:           req.Timezone,
		PasswordAllowReset: req.PasswordAllowReset,
	}
	if req.Password != "" {
		hasher := password.New(password.DefaultParams())
		hash, err := hasher.Hash(req.Password)
		if err != nil {
			return ssoerr.Internal("hash password", err)
		}
		u.PasswordHash = &hash
	}
	created, err := h.store.UserCreate(c.UserContext(), u)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userDTOOf(created)})
}

func (h *Handlers) UserRead(c *fiber.Ctx) error {
	if _, err := requireServiceOrRootKey(c); err != nil {
		return err
	}
	id, err := ssoid.ParseUserID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	u, err := h.store.UserRead(c.UserContext(), id)
	if err != nil {
		return err
	}
	if u == nil {
		return ssoerr.NotFound("user not found")
	}
	return c.JSON(fiber.Map{"data": userDTOOf(*u)})
}

func (h *Handlers) UserUpdate(c *fiber.Ctx) error {
	if _, err := requireServiceOrRootKey(c); err != nil {
		return err
	}
	id, err := ssoid.ParseUserID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	existing, err := h.store.UserRead(c.UserContext(), id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ssoerr.NotFound("user not found")
	}
	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	u := *existing
	if req.IsEnabled != nil {
		u.IsEnabled = *req.IsEnabled
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Locale != nil {
		u.Locale = *req.Locale
	}
	if req.Timezone != nil {
		u.Timezone = *req.Timezone
	}
	if req.PasswordAllowReset != nil {
		u.PasswordAllowReset = *req.PasswordAllowReset
	}
	if req.PasswordRequireUpdate != nil {
		u.PasswordRequireUpdate = *req.PasswordRequireUpdate
	}
	u.UpdatedAt = time.Now()
	updated, err := h.store.UserUpdate(c.UserContext(), u)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userDTOOf(updated)})
}

func (h *Handlers) UserDelete(c *fiber.Ctx) error {
	if _, err := requireServiceOrRootKey(c); err != nil {
		return err
	}
	id, err := ssoid.ParseUserID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	if err := h.store.UserDelete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- key CRUD ---

func (h *Handlers) KeyList(c *fiber.Ctx) error {
	r, err := requireServiceOrRootKey(c)
	if err != nil {
		return err
	}
	var serviceID *ssoid.ServiceID
	if r.Kind == authn.Service {
		serviceID = &r.Service.ID
	} else if v := c.Query("service_id"); v != "" {
		id, err := ssoid.ParseServiceID(v)
		if err != nil {
			return ssoerr.BadRequest("invalid service_id")
		}
		serviceID = &id
	}
	keys, err := h.store.KeyList(c.UserContext(), serviceID, listParamsFromQuery(c))
	if err != nil {
		return err
	}
	out := make([]keyDTO, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyDTOOf(k, false))
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *Handlers) KeyCreate(c *fiber.Ctx) error {
	r, err := requireServiceOrRootKey(c)
	if err != nil {
		return err
	}
	var req createKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	now := time.Now()
	k := model.Key{
		ID:        ssoid.NewKeyID(),
		CreatedAt: now,
		UpdatedAt: now,
		IsEnabled: true,
		Name:      req.Name,
		Type:      model.KeyType(req.Type),
	}
	switch k.Type {
	case model.KeyTypeTotp:
		k.Value = ssoid.NewTotpSecret()
	default:
		k.Value = ssoid.NewValue()
	}
	if req.ServiceID != nil {
		id, err := ssoid.ParseServiceID(*req.ServiceID)
		if err != nil {
			return ssoerr.BadRequest("invalid service_id")
		}
		k.ServiceID = &id
	}
	if req.UserID != nil {
		id, err := ssoid.ParseUserID(*req.UserID)
		if err != nil {
			return ssoerr.BadRequest("invalid user_id")
		}
		k.UserID = &id
	}
	if r.Kind == authn.Service {
		if k.ServiceID == nil || *k.ServiceID != r.Service.ID {
			return ssoerr.Forbidden("cannot create keys for another service")
		}
	}
	created, err := h.store.KeyCreate(c.UserContext(), k)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": keyDTOOf(created, true)})
}

func (h *Handlers) KeyRead(c *fiber.Ctx) error {
	r, err := requireServiceOrRootKey(c)
	if err != nil {
		return err
	}
	id, err := ssoid.ParseKeyID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	k, err := h.store.KeyRead(c.UserContext(), id)
	if err != nil {
		return err
	}
	if k == nil {
		return ssoerr.NotFound("key not found")
	}
	if r.Kind == authn.Service && (k.ServiceID == nil || *k.ServiceID != r.Service.ID) {
		return ssoerr.Forbidden("cannot read another service's key")
	}
	return c.JSON(fiber.Map{"data": keyDTOOf(*k, false)})
}

func (h *Handlers) KeyUpdate(c *fiber.Ctx) error {
	r, err := requireServiceOrRootKey(c)
	if err != nil {
		return err
	}
	id, err := ssoid.ParseKeyID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	existing, err := h.store.KeyRead(c.UserContext(), id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ssoerr.NotFound("key not found")
	}
	if r.Kind == authn.Service && (existing.ServiceID == nil || *existing.ServiceID != r.Service.ID) {
		return ssoerr.Forbidden("cannot modify another service's key")
	}
	var req updateKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	k := *existing
	if req.IsEnabled != nil {
		k.IsEnabled = *req.IsEnabled
	}
	if req.IsRevoked != nil {
		k.IsRevoked = *req.IsRevoked
	}
	if req.Name != nil {
		k.Name = *req.Name
	}
	k.UpdatedAt = time.Now()
	updated, err := h.store.KeyUpdate(c.UserContext(), k)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": keyDTOOf(updated, false)})
}

func (h *Handlers) KeyDelete(c *fiber.Ctx) error {
	r, err := requireServiceOrRootKey(c)
	if err != nil {
		return err
	}
	id, err := ssoid.ParseKeyID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	if r.Kind == authn.Service {
		existing, err := h.store.KeyRead(c.UserContext(), id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ssoerr.NotFound("key not found")
		}
		if existing.ServiceID == nil || *existing.ServiceID != r.Service.ID {
			return ssoerr.Forbidden("cannot delete another service's key")
		}
	}
	if err := h.store.KeyDelete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- audit ---

func (h *Handlers) AuditList(c *fiber.Ctx) error {
	svc, _, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	p := store.AuditListParams{ListParams: listParamsFromQuery(c), ServiceID: &svc.ID}
	if v := c.Query("type"); v != "" {
		p.Types = []string{v}
	}
	audits, err := h.store.AuditList(c.UserContext(), p)
	if err != nil {
		return err
	}
	out := make([]auditDTO, 0, len(audits))
	for _, a := range audits {
		out = append(out, auditDTOOf(a))
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *Handlers) AuditCreate(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req createAuditRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	if b == nil {
		return ssoerr.Internal("audit builder unavailable", nil)
	}
	a, err := b.CreateUnchecked(c.UserContext(), req.Type, req.Data)
	if err != nil {
		return err
	}
	a.ServiceID = &svc.ID
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": auditDTOOf(a)})
}

func (h *Handlers) AuditRead(c *fiber.Ctx) error {
	if _, _, err := requireServiceKey(c); err != nil {
		return err
	}
	id, err := ssoid.ParseAuditID(c.Params("id"))
	if err != nil {
		return ssoerr.BadRequest("invalid id")
	}
	a, err := h.store.AuditRead(c.UserContext(), id)
	if err != nil {
		return err
	}
	if a == nil {
		return ssoerr.NotFound("audit not found")
	}
	return c.JSON(fiber.Map{"data": auditDTOOf(*a)})
}
