package api

import (
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/oauth2"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/gofiber/fiber/v2"
)

func (h *Handlers) Ping(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// --- key verify/revoke ---

func (h *Handlers) KeyVerify(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req keyVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	result, err := h.engine.KeyVerify(c.UserContext(), svc, b, req.Key, req.Audit.toEngine())
	if err != nil {
		return err
	}
	return c.JSON(newUserKeyResponse(result))
}

func (h *Handlers) KeyRevoke(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req keyRevokeRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	if err := h.engine.KeyRevoke(c.UserContext(), svc, b, req.Key, req.Audit.toEngine()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- token verify/refresh/revoke ---

func (h *Handlers) TokenVerify(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	result, err := h.engine.TokenVerify(c.UserContext(), svc, b, req.Token, req.Audit.toEngine())
	if err != nil {
		return err
	}
	return c.JSON(newTokenVerifyResponse(result))
}

func (h *Handlers) TokenRefresh(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	result, err := h.engine.TokenRefresh(c.UserContext(), svc, b, req.Token, req.Audit.toEngine())
	if err != nil {
		return err
	}
	return c.JSON(newUserTokenResponse(result))
}

func (h *Handlers) TokenRevoke(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	if err := h.engine.TokenRevoke(c.UserContext(), svc, b, req.Token, req.Audit.toEngine()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- local provider ---

func (h *Handlers) LocalLogin(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	ut, err := h.engine.Login(c.UserContext(), svc, b, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(loginResponse{
		Meta: passwordMeta{PasswordStrengthFormat: "zxcvbn-0-4"},
		Data: newUserTokenResponse(ut),
	})
}

// LocalResetPassword always responds 204: spec §6 requires the request
// path stay silent about whether the email matched, to avoid leaking
// account existence.
func (h *Handlers) LocalResetPassword(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	h.engine.ResetPasswordRequest(c.UserContext(), svc, b, req.Email)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) LocalResetPasswordConfirm(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req resetPasswordConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	if err := h.engine.ResetPasswordConfirm(c.UserContext(), svc, b, req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(resetPasswordConfirmResponse{Meta: passwordMeta{PasswordStrengthFormat: "zxcvbn-0-4"}})
}

func (h *Handlers) LocalUpdateEmail(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req updateEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	userID, err := ssoid.ParseUserID(req.UserID)
	if err != nil {
		return ssoerr.BadRequest("invalid user_id")
	}
	user, err := h.engine.UpdateEmail(c.UserContext(), svc, b, userID, req.Password, req.NewEmail)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userDTOOf(user)})
}

func (h *Handlers) LocalUpdateEmailRevoke(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req updateEmailRevokeRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	revoked, err := h.engine.UpdateEmailRevoke(c.UserContext(), svc, b, req.Token)
	if err != nil {
		return err
	}
	var resp revokeCountResponse
	resp.Data.Revoked = revoked
	return c.JSON(resp)
}

func (h *Handlers) LocalUpdatePassword(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req updatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	userID, err := ssoid.ParseUserID(req.UserID)
	if err != nil {
		return ssoerr.BadRequest("invalid user_id")
	}
	user, err := h.engine.UpdatePassword(c.UserContext(), svc, b, userID, req.Password, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userDTOOf(user)})
}

func (h *Handlers) LocalUpdatePasswordRevoke(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req updatePasswordRevokeRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	revoked, err := h.engine.UpdatePasswordRevoke(c.UserContext(), svc, b, req.Token)
	if err != nil {
		return err
	}
	var resp revokeCountResponse
	resp.Data.Revoked = revoked
	return c.JSON(resp)
}

func (h *Handlers) LocalTotp(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	var req totpRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	userID, err := ssoid.ParseUserID(req.UserID)
	if err != nil {
		return ssoerr.BadRequest("invalid user_id")
	}
	if err := h.engine.Totp(c.UserContext(), svc, b, userID, req.Code); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- oauth2 ---

func (h *Handlers) providerByName(c *fiber.Ctx) (*oauth2.Provider, oauth2.ProviderName, error) {
	name := oauth2.ProviderName(c.Params("provider"))
	p, ok := h.oauth[name]
	if !ok || p == nil {
		return nil, name, ssoerr.NotFound("oauth2 provider not configured")
	}
	return p, name, nil
}

func (h *Handlers) OAuth2AuthURL(c *fiber.Ctx) error {
	svc, _, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	p, _, err := h.providerByName(c)
	if err != nil {
		return err
	}
	if h.states == nil {
		return ssoerr.Internal("oauth2 state manager not configured", nil)
	}
	state, err := h.states.Create(c.UserContext(), svc.ID.String(), oauth2StateTTL)
	if err != nil {
		return err
	}
	return c.JSON(oauth2AuthURLResponse{URL: p.AuthURL(state)})
}

func (h *Handlers) OAuth2Callback(c *fiber.Ctx) error {
	svc, b, err := requireServiceKey(c)
	if err != nil {
		return err
	}
	p, _, err := h.providerByName(c)
	if err != nil {
		return err
	}
	var req oauth2CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return ssoerr.BadRequest("invalid request body")
	}
	if h.states == nil {
		return ssoerr.Internal("oauth2 state manager not configured", nil)
	}
	flowServiceIDStr, ok, err := h.states.Consume(c.UserContext(), req.State)
	if err != nil {
		return err
	}
	if !ok {
		return ssoerr.BadRequest("oauth2 state invalid or expired")
	}
	flowServiceID, err := ssoid.ParseServiceID(flowServiceIDStr)
	if err != nil {
		return ssoerr.BadRequest("oauth2 state invalid or expired")
	}
	email, err := p.Exchange(c.UserContext(), req.Code)
	if err != nil {
		return err
	}
	ut, err := h.engine.OAuth2Login(c.UserContext(), svc, b, flowServiceID, email)
	if err != nil {
		return err
	}
	return c.JSON(newUserTokenResponse(ut))
}
