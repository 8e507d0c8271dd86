// SPDX-License-Identifier: MIT

package daemon

import "errors"

var (
	// ErrMissingHandler is returned when a manager is created without an
	// HTTP handler.
	ErrMissingHandler = errors.New("API handler is required")

	// ErrMissingRunner is returned when a scheduler is created without a
	// generation runner.
	ErrMissingRunner = errors.New("generation runner is required")

	// ErrMissingManager is returned when an app is created without a manager.
	ErrMissingManager = errors.New("manager is required")

	// ErrManagerNotStarted is returned when shutting down a manager that
	// never started.
	ErrManagerNotStarted = errors.New("manager not started")
)
