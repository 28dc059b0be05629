package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// KeyResolver resolves the signing key for a realm. The platform and
// developer realms share one global key; each tenant application has its own
// key, decrypted on demand and never cached in plaintext.
type KeyResolver interface {
	SigningKey(ctx context.Context, realm Realm, tenantID *uuid.UUID) ([]byte, error)
}

type keyResolver struct {
	platformKey []byte
	tenants     Tenants
	cipher      *SecretCipher
}

// NewKeyResolver builds the default resolver over the tenants repository and
// the secret cipher.
func NewKeyResolver(platformKey []byte, tenants Tenants, cipher *SecretCipher) KeyResolver {
	return &keyResolver{
		platformKey: platformKey,
		tenants:     tenants,
		cipher:      cipher,
	}
}

func (r *keyResolver) SigningKey(ctx context.Context, realm Realm, tenantID *uuid.UUID) ([]byte, error) {
	if !realm.TenantScoped() {
		if len(r.platformKey) == 0 {
			return nil, goerrors.New("platform signing key is not configured", goerrors.CategoryInternal)
		}
		return r.platformKey, nil
	}

	if tenantID == nil {
		return nil, goerrors.New("tenant id is required for tenant-scoped realms", goerrors.CategoryBadInput)
	}

	tenant, err := r.tenants.FindByID(ctx, *tenantID)
	if err != nil {
		return nil, err
	}

	key, err := r.cipher.Decrypt(tenant.SigningKeyCiphertext)
	if err != nil {
		return nil, err
	}

	if key == "" {
		return nil, goerrors.New("tenant signing key is empty", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"tenant_id": tenantID.String()})
	}

	return []byte(key), nil
}

// RandomSigningKey generates a fresh 256-bit signing key, base64 encoded.
// Used when provisioning a tenant and when regenerating its secret.
func RandomSigningKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate signing key")
	}

	return base64.RawStdEncoding.EncodeToString(raw), nil
}
