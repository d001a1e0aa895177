package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_metrics/internal/config"
	"social_metrics/internal/domain"
)

type stubAdapter struct {
	platform    domain.Platform
	validateErr error
}

func (s *stubAdapter) Platform() domain.Platform { return s.platform }

func (s *stubAdapter) Extract(_ context.Context, _ ExtractRequest) (*Extraction, error) {
	return &Extraction{}, nil
}

func (s *stubAdapter) ValidateConfig(_ config.ProviderConfig) error { return s.validateErr }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	adapter := &stubAdapter{platform: domain.PlatformInstagram}

	require.NoError(t, registry.Register(adapter, config.ProviderConfig{}))

	got, err := registry.Lookup(domain.PlatformInstagram)
	require.NoError(t, err)
	assert.Same(t, adapter, got.(*stubAdapter))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubAdapter{platform: domain.PlatformTikTok}, config.ProviderConfig{}))

	err := registry.Register(&stubAdapter{platform: domain.PlatformTikTok}, config.ProviderConfig{})
	assert.ErrorContains(t, err, "already registered")
}

func TestRegistry_ValidationFailureRejectsAdapter(t *testing.T) {
	registry := NewRegistry()
	adapter := &stubAdapter{platform: domain.PlatformYouTube, validateErr: errors.New("api_token is required")}

	err := registry.Register(adapter, config.ProviderConfig{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "api_token")

	_, err = registry.Lookup(domain.PlatformYouTube)
	assert.Error(t, err)
}

func TestRegistry_LookupUnknownPlatform(t *testing.T) {
	_, err := NewRegistry().Lookup(domain.PlatformFacebook)
	assert.ErrorContains(t, err, "no adapter registered")
}

func TestRegistry_Platforms(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubAdapter{platform: domain.PlatformInstagram}, config.ProviderConfig{}))
	require.NoError(t, registry.Register(&stubAdapter{platform: domain.PlatformTwitter}, config.ProviderConfig{}))

	assert.ElementsMatch(t, []domain.Platform{domain.PlatformInstagram, domain.PlatformTwitter}, registry.Platforms())
}
