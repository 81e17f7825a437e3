package shutdown

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

// Shutdown closes every valve and cancels pending auto-offs. A failed sweep
// is logged and returned; the caller still exits.
func Shutdown(ctx context.Context, reg *zone.Registry) error {
	if err := reg.AllOff(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close every zone on shutdown")
		return err
	}
	log.Info().Msg("All zones deactivated")
	return nil
}

func ShutdownWithError(ctx context.Context, reg *zone.Registry, err error, msg string) error {
	log.Error().Err(err).Msg(msg)
	return Shutdown(ctx, reg)
}
