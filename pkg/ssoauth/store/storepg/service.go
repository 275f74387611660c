package storepg

import (
	"context"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

type servicePersistence struct {
	ID                         string    `db:"id"`
	CreatedAt                  time.Time `db:"created_at"`
	UpdatedAt                  time.Time `db:"updated_at"`
	IsEnabled                  bool      `db:"is_enabled"`
	Name                       string    `db:"name"`
	URL                        string    `db:"url"`
	ProviderLocalURL           *string   `db:"provider_local_url"`
	ProviderGithubOAuth2URL    *string   `db:"provider_github_oauth2_url"`
	ProviderMicrosoftOAuth2URL *string   `db:"provider_microsoft_oauth2_url"`
}

func (s *Store) ServiceCreate(ctx context.Context, svc model.Service) (model.Service, error) {
	if svc.ID.IsNil() {
		svc.ID = ssoid.NewServiceID()
	}
	query := `
		INSERT INTO ssoauth_services (
			id, created_at, updated_at, is_enabled, name, url,
			provider_local_url, provider_github_oauth2_url, provider_microsoft_oauth2_url
		) VALUES (
			:id, :created_at, :updated_at, :is_enabled, :name, :url,
			:provider_local_url, :provider_github_oauth2_url, :provider_microsoft_oauth2_url
		)`
	if _, err := s.db.NamedExecContext(ctx, query, servicePersistenceOf(svc)); err != nil {
		if isUniqueViolation(err) {
			return model.Service{}, ssoerr.Conflict("service already exists")
		}
		return model.Service{}, ssoerr.Internal("create service", err)
	}
	return svc, nil
}

func (s *Store) ServiceRead(ctx context.Context, id ssoid.ServiceID) (*model.Service, error) {
	var p servicePersistence
	err := s.db.GetContext(ctx, &p, `SELECT * FROM ssoauth_services WHERE id = $1`, id.String())
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, ssoerr.Internal("read service", err)
	}
	svc, err := p.toDomain()
	if err != nil {
		return nil, ssoerr.Internal("decode service", err)
	}
	return &svc, nil
}

func (s *Store) ServiceUpdate(ctx context.Context, svc model.Service) (model.Service, error) {
	query := `
		UPDATE ssoauth_services SET
			updated_at = :updated_at, is_enabled = :is_enabled, name = :name, url = :url,
			provider_local_url = :provider_local_url,
			provider_github_oauth2_url = :provider_github_oauth2_url,
			provider_microsoft_oauth2_url = :provider_microsoft_oauth2_url
		WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, query, servicePersistenceOf(svc))
	if err != nil {
		return model.Service{}, ssoerr.Internal("update service", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Service{}, ssoerr.NotFound("service not found")
	}
	return svc, nil
}

func (s *Store) ServiceDelete(ctx context.Context, id ssoid.ServiceID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ssoauth_services WHERE id = $1`, id.String())
	if err != nil {
		return ssoerr.Internal("delete service", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ssoerr.NotFound("service not found")
	}
	return nil
}

func (s *Store) ServiceList(ctx context.Context, p store.ListParams) ([]model.Service, error) {
	query, args := keysetQuery("ssoauth_services", "*", p)
	var rows []servicePersistence
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ssoerr.Internal("list services", err)
	}
	out := make([]model.Service, 0, len(rows))
	for _, r := range rows {
		svc, err := r.toDomain()
		if err != nil {
			return nil, ssoerr.Internal("decode service", err)
		}
		out = append(out, svc)
	}
	reverseIfDescendingOnly(p, out)
	return out, nil
}

func servicePersistenceOf(svc model.Service) servicePersistence {
	return servicePersistence{
		ID:                         svc.ID.String(),
		CreatedAt:                  svc.CreatedAt,
		UpdatedAt:                  svc.UpdatedAt,
		IsEnabled:                  svc.IsEnabled,
		Name:                       svc.Name,
		URL:                        svc.URL,
		ProviderLocalURL:           svc.ProviderLocalURL,
		ProviderGithubOAuth2URL:    svc.ProviderGithubOAuth2URL,
		ProviderMicrosoftOAuth2URL: svc.ProviderMicrosoftOAuth2URL,
	}
}

func (p servicePersistence) toDomain() (model.Service, error) {
	id, err := ssoid.ParseServiceID(p.ID)
	if err != nil {
		return model.Service{}, err
	}
	return model.Service{
		ID:                         id,
		CreatedAt:                  p.CreatedAt,
		UpdatedAt:                  p.UpdatedAt,
		IsEnabled:                  p.IsEnabled,
		Name:                       p.Name,
		URL:                        p.URL,
		ProviderLocalURL:           p.ProviderLocalURL,
		ProviderGithubOAuth2URL:    p.ProviderGithubOAuth2URL,
		ProviderMicrosoftOAuth2URL: p.ProviderMicrosoftOAuth2URL,
	}, nil
}
