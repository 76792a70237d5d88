package main

import (
	"context"
	"time"
)

const purgeInterval = 30 * time.Minute

// purgeExpiredCodesEvery clears stale verification codes and reset windows
// until ctx is done.
func (app *application) purgeExpiredCodesEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Run once immediately
		app.purgeExpiredCodes(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.purgeExpiredCodes(ctx)
			}
		}
	}()
}

func (app *application) purgeExpiredCodes(ctx context.Context) {
	n, err := app.store.Users.PurgeExpiredOTPs(ctx, time.Now())
	if err != nil {
		app.logger.Errorw("error purging expired codes", "error", err)
		return
	}
	if n > 0 {
		app.logger.Infow("purged expired codes", "users", n)
	}
}
