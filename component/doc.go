// Package component defines the lifecycle contract shared by the store
// backends and other long-lived clients owned by an app.Context.
//
// A Component is started once, reports its health, and is stopped when the
// owning context is closed. The Registry starts components in registration
// order and stops them in reverse, so register dependencies first.
package component
