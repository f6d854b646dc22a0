package config

import "log/slog"

// AuthMode selects how the crawler authenticates against the target.
type AuthMode string

const (
	// AuthModeNone crawls anonymously.
	AuthModeNone AuthMode = "none"
	// AuthModeForm submits a login form and keeps the resulting cookies.
	AuthModeForm AuthMode = "form"
	// AuthModeBasic sends HTTP Basic credentials with every request.
	AuthModeBasic AuthMode = "basic"
	// AuthModeBearer sends an Authorization: Bearer header with every request.
	AuthModeBearer AuthMode = "bearer"
)

// Default form field names used when the configuration leaves them empty.
const (
	DefaultUsernameField = "username"
	DefaultPasswordField = "password"
)

// AuthConfig is the authentication block of a scan configuration.
type AuthConfig struct {
	Mode     AuthMode `yaml:"mode"`
	LoginURL string   `yaml:"login_url,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`

	// UsernameField and PasswordField are the form input names used for
	// form login.
	UsernameField string `yaml:"username_field,omitempty"`
	PasswordField string `yaml:"password_field,omitempty"`
}

// Enabled reports whether any authentication is configured.
func (a AuthConfig) Enabled() bool {
	return a.Mode != "" && a.Mode != AuthModeNone
}

// UsernameFieldName returns the configured username field or the default.
func (a AuthConfig) UsernameFieldName() string {
	if a.UsernameField == "" {
		return DefaultUsernameField
	}
	return a.UsernameField
}

// PasswordFieldName returns the configured password field or the default.
func (a AuthConfig) PasswordFieldName() string {
	if a.PasswordField == "" {
		return DefaultPasswordField
	}
	return a.PasswordField
}

// Validate checks the fields each mode requires.
func (a AuthConfig) Validate() error {
	switch a.Mode {
	case "", AuthModeNone:
		return nil
	case AuthModeForm:
		if a.LoginURL == "" {
			return ErrMissingLoginURL
		}
		if a.Username == "" || a.Password == "" {
			return ErrMissingCredentials
		}
	case AuthModeBasic:
		if a.Username == "" || a.Password == "" {
			return ErrMissingCredentials
		}
	case AuthModeBearer:
		if a.Token == "" {
			return ErrMissingToken
		}
	default:
		return ErrInvalidAuthMode
	}
	return nil
}

// LogValue implements slog.LogValuer. Secrets are never included.
func (a AuthConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mode", string(a.Mode)),
		slog.String("login_url", a.LoginURL),
		slog.String("username", a.Username),
		slog.Bool("has_password", a.Password != ""),
		slog.Bool("has_token", a.Token != ""),
	)
}
