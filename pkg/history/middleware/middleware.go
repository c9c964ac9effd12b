// Package middleware wraps a history.Store to transform entries on their way
// to and from storage.
package middleware

import "github.com/agent2000/agent2000/pkg/history"

// Middleware allows wrapping a history.Store to add behavior.
type Middleware func(history.Store) history.Store

// Chain applies mws so that the first one sees entries first on Save.
func Chain(store history.Store, mws ...Middleware) history.Store {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
