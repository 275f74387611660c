package api

import "github.com/gofiber/fiber/v2"

// RegisterRoutes wires the endpoint table (spec.md §6) onto app, under
// /v1. Every route except /v1/ping runs h.authenticate first, which
// resolves the Authorization header into an authn.Result the handler
// then narrows with requireServiceKey/requireServiceOrRootKey.
func (h *Handlers) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/v1")

	v1.Get("/ping", h.Ping)

	auth := v1.Group("/auth", h.authenticate)
	auth.Post("/key/verify", h.KeyVerify)
	auth.Post("/key/revoke", h.KeyRevoke)
	auth.Post("/token/verify", h.TokenVerify)
	auth.Post("/token/refresh", h.TokenRefresh)
	auth.Post("/token/revoke", h.TokenRevoke)

	local := auth.Group("/provider/local")
	local.Post("/login", h.LocalLogin)
	local.Post("/reset-password", h.LocalResetPassword)
	local.Post("/reset-password/confirm", h.LocalResetPasswordConfirm)
	local.Post("/update-email", h.LocalUpdateEmail)
	local.Post("/update-email/revoke", h.LocalUpdateEmailRevoke)
	local.Post("/update-password", h.LocalUpdatePassword)
	local.Post("/update-password/revoke", h.LocalUpdatePasswordRevoke)
	local.Post("/totp", h.LocalTotp)

	oauth2 := auth.Group("/provider/:provider")
	oauth2.Get("/oauth2", h.OAuth2AuthURL)
	oauth2.Post("/oauth2", h.OAuth2Callback)

	audit := v1.Group("/audit", h.authenticate)
	audit.Get("/", h.AuditList)
	audit.Post("/", h.AuditCreate)
	audit.Get("/:id", h.AuditRead)

	key := v1.Group("/key", h.authenticate)
	key.Get("/", h.KeyList)
	key.Post("/", h.KeyCreate)
	key.Get("/:id", h.KeyRead)
	key.Patch("/:id", h.KeyUpdate)
	key.Delete("/:id", h.KeyDelete)

	service := v1.Group("/service", h.authenticate)
	service.Get("/", h.ServiceList)
	service.Post("/", h.ServiceCreate)
	service.Get("/:id", h.ServiceRead)
	service.Patch("/:id", h.ServiceUpdate)
	service.Delete("/:id", h.ServiceDelete)

	user := v1.Group("/user", h.authenticate)
	user.Get("/", h.UserList)
	user.Post("/", h.UserCreate)
	user.Get("/:id", h.UserRead)
	user.Patch("/:id", h.UserUpdate)
	user.Delete("/:id", h.UserDelete)
}
