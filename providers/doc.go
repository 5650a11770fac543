// Package providers defines the resource owner authentication interface
// used to gate the authorization endpoints.
//
// The login handler calls Provider.Authenticate with the submitted
// credentials and, on success, stores the resulting Principal in the
// session. Later requests carry the principal in their context, where the
// protocol core reads it for audit logging:
//
//	ctx = providers.WithPrincipal(ctx, principal)
//	user := providers.UsernameFromContext(ctx)
//
// Implementations:
//   - static: users and bcrypt password hashes from the configuration file
//   - mock: function-field mock for tests
package providers
