package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	configstore "github.com/fuseinfotech/send2crm/internal/config/store"
	"github.com/fuseinfotech/send2crm/internal/options"
)

// CredentialsOption is the option holding the admin user name and password hash.
const CredentialsOption = "send2crm_admin_credentials"

const minPasswordLength = 8

// Authorizer decides whether a request may manage settings.
type Authorizer interface {
	Authorize(r *http.Request) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(r *http.Request) bool

func (f AuthorizerFunc) Authorize(r *http.Request) bool { return f(r) }

// challenger is implemented by authorizers that can ask the browser for
// credentials.
type challenger interface {
	Challenge(w http.ResponseWriter)
}

// BasicAuth checks HTTP basic credentials against the bcrypt hash stored in
// CredentialsOption. With no credentials stored every request is refused.
type BasicAuth struct {
	backend options.Backend
	realm   string
	logger  zerolog.Logger
}

// NewBasicAuth creates a basic-auth authorizer over backend.
func NewBasicAuth(backend options.Backend, realm string, logger zerolog.Logger) *BasicAuth {
	if realm == "" {
		realm = "send2crm"
	}
	return &BasicAuth{
		backend: backend,
		realm:   realm,
		logger:  logger.With().Str("component", "admin-auth").Logger(),
	}
}

func (b *BasicAuth) Authorize(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	creds, err := b.backend.GetOption(r.Context(), CredentialsOption)
	if configstore.IsNotFound(err) {
		b.logger.Warn().Msg("no admin credentials configured, run `send2crm admin set-password`")
		return false
	}
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to load admin credentials")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(creds["username"])) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(creds["password_hash"]), []byte(pass)) == nil
}

// Challenge asks the client for basic credentials.
func (b *BasicAuth) Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", b.realm))
}

// SetPassword stores username and a bcrypt hash of password as the admin credentials.
func SetPassword(ctx context.Context, backend options.Backend, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("admin: username is required")
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("admin: password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("admin: hash password: %w", err)
	}
	if err := backend.SetOption(ctx, CredentialsOption, map[string]string{
		"username":      username,
		"password_hash": string(hash),
	}); err != nil {
		return fmt.Errorf("admin: store credentials: %w", err)
	}
	return nil
}
