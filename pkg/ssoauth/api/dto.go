package api

import (
	"encoding/json"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ptrx"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/engine"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
)

// auditDataBody is the optional client-supplied `audit` envelope;
// toEngine converts it into an engine.AuditData, or nil if the caller
// didn't send one.
type auditDataBody struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (b *auditDataBody) toEngine() *engine.AuditData {
	if b == nil || b.Type == "" {
		return nil
	}
	return &engine.AuditData{Type: b.Type, Data: b.Data}
}

// --- key verify/revoke ---

type keyVerifyRequest struct {
	Key   string         `json:"key"`
	Audit *auditDataBody `json:"audit,omitempty"`
}

type keyRevokeRequest struct {
	Key   string         `json:"key"`
	Audit *auditDataBody `json:"audit,omitempty"`
}

type userKeyResponse struct {
	Data struct {
		User userDTO `json:"user"`
		Key  string  `json:"key"`
	} `json:"data"`
}

func newUserKeyResponse(r engine.UserKeyResult) userKeyResponse {
	var resp userKeyResponse
	resp.Data.User = userDTOOf(r.User)
	resp.Data.Key = r.KeyValue
	return resp
}

// --- token verify/refresh/revoke ---

type tokenRequest struct {
	Token string         `json:"token"`
	Audit *auditDataBody `json:"audit,omitempty"`
}

type tokenVerifyResponse struct {
	Data struct {
		User        userDTO   `json:"user"`
		AccessToken string    `json:"access_token"`
		Expiry      time.Time `json:"expiry"`
	} `json:"data"`
}

func newTokenVerifyResponse(r engine.TokenVerifyResult) tokenVerifyResponse {
	var resp tokenVerifyResponse
	resp.Data.User = userDTOOf(r.User)
	resp.Data.AccessToken = r.AccessToken
	resp.Data.Expiry = r.AccessTokenExpires
	return resp
}

type userTokenResponse struct {
	Data struct {
		User                userDTO   `json:"user"`
		AccessToken         string    `json:"access_token"`
		AccessTokenExpires  time.Time `json:"access_token_expires"`
		RefreshToken        string    `json:"refresh_token"`
		RefreshTokenExpires time.Time `json:"refresh_token_expires"`
	} `json:"data"`
}

func newUserTokenResponse(ut engine.UserToken) userTokenResponse {
	var resp userTokenResponse
	resp.Data.User = userDTOOf(ut.User)
	resp.Data.AccessToken = ut.AccessToken
	resp.Data.AccessTokenExpires = ut.AccessTokenExpires
	resp.Data.RefreshToken = ut.RefreshToken
	resp.Data.RefreshTokenExpires = ut.RefreshTokenExpires
	return resp
}

// --- local provider ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordMeta struct {
	PasswordStrengthFormat string `json:"password_strength_format"`
}

type loginResponse struct {
	Meta passwordMeta      `json:"meta"`
	Data userTokenResponse `json:"data"`
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type resetPasswordConfirmResponse struct {
	Meta passwordMeta `json:"meta"`
}

type updateEmailRequest struct {
	UserID      string `json:"user_id"`
	Password    string `json:"password"`
	NewEmail    string `json:"new_email"`
}

type updateEmailRevokeRequest struct {
	Token string `json:"token"`
}

type updatePasswordRequest struct {
	UserID      string `json:"user_id"`
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

type updatePasswordRevokeRequest struct {
	Token string `json:"token"`
}

type revokeCountResponse struct {
	Data struct {
		Revoked int `json:"revoked"`
	} `json:"data"`
}

type totpRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// --- oauth2 ---

type oauth2AuthURLResponse struct {
	URL string `json:"url"`
}

type oauth2CallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// --- entity DTOs shared by admin CRUD and auth responses ---

type serviceDTO struct {
	ID                         string    `json:"id"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
	IsEnabled                  bool      `json:"is_enabled"`
	Name                       string    `json:"name"`
	URL                        string    `json:"url"`
	ProviderLocalURL           *string   `json:"provider_local_url,omitempty"`
	ProviderGithubOAuth2URL    *string   `json:"provider_github_oauth2_url,omitempty"`
	ProviderMicrosoftOAuth2URL *string   `json:"provider_microsoft_oauth2_url,omitempty"`
}

func serviceDTOOf(s model.Service) serviceDTO {
	return serviceDTO{
		ID:                         s.ID.String(),
		CreatedAt:                  s.CreatedAt,
		UpdatedAt:                  s.UpdatedAt,
		IsEnabled:                  s.IsEnabled,
		Name:                       s.Name,
		URL:                        s.URL,
		ProviderLocalURL:           s.ProviderLocalURL,
		ProviderGithubOAuth2URL:    s.ProviderGithubOAuth2URL,
		ProviderMicrosoftOAuth2URL: s.ProviderMicrosoftOAuth2URL,
	}
}

type createServiceRequest struct {
	Name                       string  `json:"name"`
	URL                        string  `json:"url"`
	ProviderLocalURL           *string `json:"provider_local_url,omitempty"`
	ProviderGithubOAuth2URL    *string `json:"provider_github_oauth2_url,omitempty"`
	ProviderMicrosoftOAuth2URL *string `json:"provider_microsoft_oauth2_url,omitempty"`
}

type updateServiceRequest struct {
	IsEnabled                  *bool   `json:"is_enabled,omitempty"`
	Name                       *string `json:"name,omitempty"`
	URL                        *string `json:"url,omitempty"`
	ProviderLocalURL           *string `json:"provider_local_url,omitempty"`
	ProviderGithubOAuth2URL    *string `json:"provider_github_oauth2_url,omitempty"`
	ProviderMicrosoftOAuth2URL *string `json:"provider_microsoft_oauth2_url,omitempty"`
}

type userDTO struct {
	ID                    string    `json:"id"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	IsEnabled             bool      `json:"is_enabled"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	Locale                string    `json:"locale"`
	Timezone              string    `json:"timezone"`
	PasswordAllowReset    bool      `json:"password_allow_reset"`
	PasswordRequireUpdate bool      `json:"password_require_update"`
}

func userDTOOf(u model.User) userDTO {
	return userDTO{
		ID:                    u.ID.String(),
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
		IsEnabled:             u.IsEnabled,
		Name:                  u.Name,
		Email:                 u.Email,
		Locale:                u.Locale,
		Timezone:              u.Timezone,
		PasswordAllowReset:    u.PasswordAllowReset,
		PasswordRequireUpdate: u.PasswordRequireUpdate,
	}
}

type createUserRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Locale             string `json:"locale"`
	Timezone           string `json:"timezone"`
	Password           string `json:"password,omitempty"`
	PasswordAllowReset bool   `json:"password_allow_reset"`
}

type updateUserRequest struct {
	IsEnabled             *bool   `json:"is_enabled,omitempty"`
	Name                  *string `json:"name,omitempty"`
	Email                 *string `json:"email,omitempty"`
	Locale                *string `json:"locale,omitempty"`
	Timezone              *string `json:"timezone,omitempty"`
	PasswordAllowReset    *bool   `json:"password_allow_reset,omitempty"`
	PasswordRequireUpdate *bool   `json:"password_require_update,omitempty"`
}

type keyDTO struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsEnabled bool      `json:"is_enabled"`
	IsRevoked bool      `json:"is_revoked"`
	Name      string    `json:"name"`
	Value     string    `json:"value,omitempty"`
	Type      string    `json:"type"`
	ServiceID *string   `json:"service_id,omitempty"`
	UserID    *string   `json:"user_id,omitempty"`
}

func keyDTOOf(k model.Key, includeValue bool) keyDTO {
	d := keyDTO{
		ID:        k.ID.String(),
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
		IsEnabled: k.IsEnabled,
		IsRevoked: k.IsRevoked,
		Name:      k.Name,
		Type:      string(k.Type),
	}
	if includeValue {
		d.Value = k.Value
	}
	if k.ServiceID != nil {
		d.ServiceID = ptrx.String(k.ServiceID.String())
	}
	if k.UserID != nil {
		d.UserID = ptrx.String(k.UserID.String())
	}
	return d
}

type createKeyRequest struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	ServiceID *string `json:"service_id,omitempty"`
	UserID    *string `json:"user_id,omitempty"`
}

type updateKeyRequest struct {
	IsEnabled *bool   `json:"is_enabled,omitempty"`
	IsRevoked *bool   `json:"is_revoked,omitempty"`
	Name      *string `json:"name,omitempty"`
}

type auditDTO struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UserAgent string          `json:"user_agent"`
	Remote    string          `json:"remote"`
	Forwarded *string         `json:"forwarded,omitempty"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	ServiceID *string         `json:"service_id,omitempty"`
	UserID    *string         `json:"user_id,omitempty"`
	KeyID     *string         `json:"key_id,omitempty"`
	UserKeyID *string         `json:"user_key_id,omitempty"`
}

func auditDTOOf(a model.Audit) auditDTO {
	d := auditDTO{
		ID:        a.ID.String(),
		CreatedAt: a.CreatedAt,
		UserAgent: a.UserAgent,
		Remote:    a.Remote,
		Forwarded: a.Forwarded,
		Type:      a.Type,
		Data:      a.Data,
	}
	if a.ServiceID != nil {
		d.ServiceID = ptrx.String(a.ServiceID.String())
	}
	if a.UserID != nil {
		d.UserID = ptrx.String(a.UserID.String())
	}
	if a.KeyID != nil {
		d.KeyID = ptrx.String(a.KeyID.String())
	}
	if a.UserKeyID != nil {
		d.UserKeyID = ptrx.String(a.UserKeyID.String())
	}
	return d
}

type createAuditRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
