package cli

import (
	"fmt"

	"postrelay/config"
	"postrelay/credentials"
	"postrelay/failures"
	"postrelay/logger"
	"postrelay/success"
)

// openStores opens the credentials store and both ledgers. The returned
// function closes whatever was opened.
func openStores() (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	logger.Debug("Initializing credentials database")
	if err := credentials.OpenDB(config.GetCredentialsDBPath()); err != nil {
		return nil, fmt.Errorf("failed to initialize credentials store: %w", err)
	}
	closers = append(closers, func() { credentials.CloseDB() })

	logger.Debug("Initializing failures database")
	if err := failures.Init(config.GetFailuresDBPath()); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to initialize failure store: %w", err)
	}
	closers = append(closers, func() { failures.Close() })

	logger.Debug("Initializing success database")
	if err := success.Init(config.GetSuccessDBPath()); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to initialize success store: %w", err)
	}
	closers = append(closers, func() { success.Close() })

	logger.Info("Stores initialized successfully")
	return closeAll, nil
}
