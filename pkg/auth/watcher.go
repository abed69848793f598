package auth

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/streamcart/cartsync/pkg/log"
)

// Change describes a credential transition observed on disk.
type Change int

const (
	// LoggedIn means a token appeared or was replaced.
	LoggedIn Change = iota
	// LoggedOut means the token was removed.
	LoggedOut
)

// Watch observes the credential file and invokes onChange for every login or
// logout performed by an external process. The parent directory is watched
// (not the file itself) so atomic rename-into-place writes are seen. Watch
// blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, onChange func(Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.ForComponent("auth").Warnf("closing watcher: %v", err)
		}
	}()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching credential directory: %w", err)
	}

	logger := log.ForComponent("auth")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			had := s.HasCredential()
			if err := s.reload(); err != nil {
				logger.Warnf("reloading credential: %v", err)
				continue
			}
			has := s.HasCredential()
			switch {
			case has && (!had || event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)):
				logger.Infof("credential updated")
				onChange(LoggedIn)
			case had && !has:
				logger.Infof("credential cleared")
				onChange(LoggedOut)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watcher error: %v", err)
		}
	}
}
