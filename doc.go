// Package auth manages the authentication session of the store inventory
// dashboard on top of a hosted identity provider.
//
// Session lifecycle:
//   - SessionManager is the only writer of the session. It starts
//     Authenticating with Loading set and CheckSession resolves it from the
//     persisted credentials. SignIn, SignUp and CheckSession are attempts and
//     run one at a time; SignOut and DeleteUser invalidate the attempt in
//     flight instead of waiting for it.
//   - Every change goes through the transition graph in state_machine.go and
//     is published to subscribers as a SessionSnapshot. Identity, attributes
//     and tokens are committed together and only while Authenticated.
//
// Account status gate:
//   - The custom:status attribute is checked after every attribute fetch.
//     Inactive, suspended and pending accounts are signed out once and the
//     session ends Unauthenticated. SignIn reports ErrAccountNotActive.
//
// Authorization:
//   - Role and StoreAccess are derived from the custom:role and
//     custom:store_access attributes on demand. RouteGuard turns a snapshot
//     into render, loading, redirect or forbidden decisions; the web package
//     adapts it to go-router middleware.
//
// Activity sinks:
//   - ActivitySink receives sign in, sign out, account and token events. Sinks
//     run best-effort (errors are logged) so you can forward to metrics or a
//     queue without blocking authentication.
package auth
