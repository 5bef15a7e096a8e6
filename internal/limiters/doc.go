// Package limiters contains client-local attempt throttling policies.
//
// # Window semantics
//
// The login governor is a plain in-process counter with no time window and no
// persistence: it resets only on a successful login or process restart. This
// mirrors the product's lockout policy exactly; adding a cooldown timer here
// would change user-visible behavior.
//
// # What this package must NOT do
//
//   - Persist counters. Lockout is process-lifetime by contract.
//   - Perform network calls or talk to any store.
//   - Be imported outside the sessionkit module.
package limiters
