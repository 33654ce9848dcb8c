package gate

import (
	"context"

	"edustack-web/internal/application/session"

	"github.com/rs/zerolog/log"
)

// Navigator performs the redirect of a denied view.
type Navigator interface {
	Replace(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Replace(route string) { f(route) }

// Observable is a session that can be watched (*session.State).
type Observable interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Watch keeps a mounted view's access decision current. It re-checks rule
// after every session change and emits each new decision on the returned
// channel. Entering Deny or Login calls nav.Replace once; staying denied
// across further changes does not navigate again. The channel closes when
// ctx ends or the session stops publishing changes.
func Watch(ctx context.Context, src Observable, rule Rule, nav Navigator) <-chan Decision {
	changes, cancel := src.Subscribe()
	out := make(chan Decision, 1)

	go func() {
		defer close(out)
		defer cancel()

		last := Decision(-1)
		check := func() bool {
			d := rule(src.Snapshot())
			if d == last {
				return true
			}
			last = d
			if d.Redirects() {
				log.Info().Str("decision", d.String()).Str("target", d.Target()).
					Msg("gate: mounted view denied, redirecting")
				nav.Replace(d.Target())
			}
			select {
			case out <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !check() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok || !check() {
					return
				}
			}
		}
	}()
	return out
}
