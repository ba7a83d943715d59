package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"gopkg.in/ini.v1"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
)

const DefaultProfile = "default"

// StaticTokenCredential adapts a vault-resolved delegated token to the ARM
// client credential interface.
type StaticTokenCredential struct {
	token domain.Token
}

func NewStaticTokenCredential(token domain.Token) *StaticTokenCredential {
	return &StaticTokenCredential{token: token}
}

func (c *StaticTokenCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.token.AccessToken,
		ExpiresOn: c.token.ExpiresAt,
	}, nil
}

// PlatformCredential builds the platform-default credential used when no
// delegated credential is configured or the configured one is invalid. The
// tenant comes from the profile section of ~/.azure/config when present.
func PlatformCredential(profile string) (azcore.TokenCredential, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	opts := &azidentity.DefaultAzureCredentialOptions{}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".azure", "config")
		if cfg, err := ini.Load(configPath); err == nil {
			if section, err := cfg.GetSection(profile); err == nil {
				opts.TenantID = section.Key("tenant").String()
			}
		}
	}

	cred, err := azidentity.NewDefaultAzureCredential(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create platform credential: %w", err)
	}
	return cred, nil
}
