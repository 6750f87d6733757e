// Package verification watches for confirmation of an off-band donation.
//
// A Poller is started once the user says they have paid. It checks a local
// flag first, then polls the profile store on a fixed interval until the
// profile reports donorVerified or the verification window closes. Timers come
// from an injected Scheduler so the whole lifecycle can be driven on virtual
// time in tests.
package verification
