// Package supervisor runs independent units side by side and stops them
// together.
package supervisor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/webchat/webchat/pkg/logger"
)

// Unit is one long-running component. Run must return once ctx is done.
type Unit struct {
	Name string
	Run  func(ctx context.Context) error
}

// Run starts every unit concurrently and blocks until all of them have
// returned. Units fail independently: one exiting, with or without an error,
// does not stop the others and is not restarted. Cancelling ctx signals all
// units first, then Run waits for each to finish. The first unit error is
// returned.
func Run(ctx context.Context, units ...Unit) error {
	log := logger.With("supervisor")
	var g errgroup.Group
	for _, u := range units {
		u := u
		g.Go(func() error {
			log.Info().Str("unit", u.Name).Msg("unit starting")
			err := runUnit(ctx, u)
			if err != nil {
				log.Error().Err(err).Str("unit", u.Name).Msg("unit exited with error")
				return fmt.Errorf("%s: %w", u.Name, err)
			}
			if ctx.Err() == nil {
				log.Warn().Str("unit", u.Name).Msg("unit exited before shutdown")
			} else {
				log.Info().Str("unit", u.Name).Msg("unit stopped")
			}
			return nil
		})
	}
	return g.Wait()
}

// runUnit turns a panicking unit into an error so the others keep running.
func runUnit(ctx context.Context, u Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return u.Run(ctx)
}
