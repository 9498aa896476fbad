// Package service provides the filesystem-style operations built on a blob container.
package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/config"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// URLBuilder supplies the unsigned URLs that grants are appended to.
type URLBuilder interface {
	BlobURL(path string) string
	ContainerURL() string
	Container() string
}

// PresignService issues Shared Access Signatures for one container.
type PresignService struct {
	signer                      *auth.SASSigner
	urls                        URLBuilder
	defaultExpiry               time.Duration
	defaultPermissions          string
	defaultContainerPermissions string
	protocol                    string
	now                         func() time.Time
	logger                      zerolog.Logger
}

// PresignConfig contains configuration for the presign service.
type PresignConfig struct {
	DefaultExpiry               time.Duration
	DefaultPermissions          string
	DefaultContainerPermissions string
	Protocol                    string
	APIVersion                  string

	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultPresignConfig returns default presign configuration.
func DefaultPresignConfig() PresignConfig {
	return PresignConfig{
		DefaultExpiry:               time.Hour,
		DefaultPermissions:          auth.DefaultBlobPermissions,
		DefaultContainerPermissions: auth.DefaultContainerPermissions,
		Protocol:                    auth.DefaultSASProtocol,
		APIVersion:                  auth.DefaultAPIVersion,
	}
}

// PresignConfigFrom maps application configuration onto PresignConfig.
func PresignConfigFrom(cfg *config.Config) PresignConfig {
	return PresignConfig{
		DefaultExpiry:               cfg.SAS.DefaultExpiry,
		DefaultPermissions:          cfg.SAS.DefaultPermissions,
		DefaultContainerPermissions: cfg.SAS.DefaultContainerPermissions,
		Protocol:                    cfg.SAS.Protocol,
		APIVersion:                  cfg.APIVersion,
	}
}

// NewPresignService creates a new PresignService.
func NewPresignService(creds auth.Credentials, urls URLBuilder, config PresignConfig, logger zerolog.Logger) *PresignService {
	defaults := DefaultPresignConfig()
	if config.DefaultExpiry <= 0 {
		config.DefaultExpiry = defaults.DefaultExpiry
	}
	if config.DefaultPermissions == "" {
		config.DefaultPermissions = defaults.DefaultPermissions
	}
	if config.DefaultContainerPermissions == "" {
		config.DefaultContainerPermissions = defaults.DefaultContainerPermissions
	}
	if config.Protocol == "" {
		config.Protocol = defaults.Protocol
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &PresignService{
		signer:                      auth.NewSASSigner(creds, config.APIVersion),
		urls:                        urls,
		defaultExpiry:               config.DefaultExpiry,
		defaultPermissions:          config.DefaultPermissions,
		defaultContainerPermissions: config.DefaultContainerPermissions,
		protocol:                    config.Protocol,
		now:                         config.Now,
		logger:                      logger.With().Str("service", "presign").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// PresignInput contains the data needed to issue a grant.
type PresignInput struct {
	// Path is the blob path. Ignored for container grants.
	Path string

	// Permissions is a subset of "racwdl". Empty uses the configured default.
	Permissions string

	// Expiry is the grant lifetime. Zero uses the configured default.
	Expiry time.Duration

	// Start is optional.
	Start time.Time

	// IPRange is optional.
	IPRange string

	// Protocol overrides the configured protocol.
	Protocol string
}

// PresignOutput contains an issued grant.
type PresignOutput struct {
	// URL is the resource URL with the token appended.
	URL string

	// Token is the encoded query string.
	Token string

	// Permissions are the granted permissions.
	Permissions string

	// Expiration is when the grant stops working.
	Expiration time.Time
}

// =============================================================================
// Grant Operations
// =============================================================================

// BlobSAS issues a grant for a single blob.
func (s *PresignService) BlobSAS(input PresignInput) (*PresignOutput, error) {
	key := storage.NormalizeKey(input.Path)
	if key == "" {
		return nil, fmt.Errorf("%w: path is required", ErrMissingRequiredParams)
	}
	if input.Permissions == "" {
		input.Permissions = s.defaultPermissions
	}
	return s.issue(input, key, s.urls.BlobURL(key))
}

// ContainerSAS issues a grant for the whole container.
func (s *PresignService) ContainerSAS(input PresignInput) (*PresignOutput, error) {
	if input.Permissions == "" {
		input.Permissions = s.defaultContainerPermissions
	}
	return s.issue(input, "", s.urls.ContainerURL())
}

// SignedURL is a convenience for a read grant on one blob.
func (s *PresignService) SignedURL(path string, expiry time.Duration) (string, error) {
	out, err := s.BlobSAS(PresignInput{Path: path, Expiry: expiry})
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (s *PresignService) issue(input PresignInput, blob, resourceURL string) (*PresignOutput, error) {
	expiry := input.Expiry
	if expiry == 0 {
		expiry = s.defaultExpiry
	}
	if expiry < 0 {
		return nil, ErrInvalidExpiration
	}

	protocol := input.Protocol
	if protocol == "" {
		protocol = s.protocol
	}

	expiresAt := s.now().UTC().Add(expiry)
	token, err := s.signer.Sign(auth.SASValues{
		Permissions: input.Permissions,
		Start:       input.Start,
		Expiry:      expiresAt,
		Container:   s.urls.Container(),
		Blob:        blob,
		IPRange:     input.IPRange,
		Protocol:    protocol,
	})
	if err != nil {
		return nil, err
	}

	encoded := token.Encode()

	s.logger.Debug().
		Str("container", s.urls.Container()).
		Str("blob", blob).
		Str("permissions", token.Values.Permissions).
		Time("expires_at", expiresAt).
		Msg("issued shared access signature")

	return &PresignOutput{
		URL:         resourceURL + "?" + encoded,
		Token:       encoded,
		Permissions: token.Values.Permissions,
		Expiration:  expiresAt,
	}, nil
}
