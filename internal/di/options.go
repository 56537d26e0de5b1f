package di

// CallbackURL and DisableAuth are distinct types so dig can tell them
// apart from plain strings and bools in provider signatures.
type CallbackURL string
type DisableAuth bool

type options struct {
	callbackURL CallbackURL
	disableAuth bool
	providers   []any
}

// Option configures the container at construction time.
type Option func(*options)

// WithCallbackURL sets the OAuth callback URL handed to the
// authenticator provider.
func WithCallbackURL(url string) Option {
	return func(o *options) {
		o.callbackURL = CallbackURL(url)
	}
}

// WithDisableAuth switches the console to the NoOp authenticator.
func WithDisableAuth(disable bool) Option {
	return func(o *options) {
		o.disableAuth = disable
	}
}

// WithProviders registers extra constructor functions with the
// container. Each constructor's parameters are resolved from what
// other providers produce.
func WithProviders(providers ...any) Option {
	return func(o *options) {
		o.providers = append(o.providers, providers...)
	}
}
