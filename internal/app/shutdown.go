package app

import (
	"context"
	"errors"
	"fmt"
)

// Shutdown stops the application in the following order:
//  1. Cancels the application context (ends the terminal UI and polling)
//  2. Stops the Telegram connector, detaching its sessions
//  3. Stops the admin API
//  4. Stops the job reaper and the cron scheduler
//  5. Stops the worker pool
//  6. Closes the database
//
// It is safe to call more than once.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	a.logger.Info("shutting down")
	a.cancel()

	var errs []error

	if a.telegram != nil {
		if err := a.telegram.Stop(); err != nil {
			a.logger.Error("failed to stop telegram connector", err)
			errs = append(errs, err)
		}
	}

	if a.http != nil {
		if err := a.http.Shutdown(context.Background()); err != nil {
			a.logger.Error("failed to stop admin api", err)
			errs = append(errs, err)
		}
	}

	if a.reaper != nil {
		a.reaper.Stop()
	}

	if a.cron != nil {
		if a.cron.Scheduler.IsStarted() {
			if err := a.cron.Scheduler.Stop(); err != nil {
				a.logger.Error("failed to stop cron scheduler", err)
				errs = append(errs, err)
			}
		}
		a.cron.Pool.Stop()
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Error("failed to close database", err)
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	a.telegram, a.http, a.reaper, a.cron, a.storage = nil, nil, nil, nil, nil
	a.started = false

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
