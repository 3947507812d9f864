package main

import (
	"sync/atomic"

	"github.com/agentcanvas/agentcanvas/session"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// secretWatcher holds the live session secret. A config file edit replaces
// it; a value that fails validation is ignored and the old one kept.
type secretWatcher struct {
	current atomic.Pointer[string]
	log     *zap.Logger
}

func newSecretWatcher(initial string, logger *zap.Logger) *secretWatcher {
	w := &secretWatcher{log: logger}
	w.current.Store(&initial)
	return w
}

// Secret returns the live secret. It is passed to the session codec.
func (w *secretWatcher) Secret() string {
	return *w.current.Load()
}

// update reports whether next replaced the live secret.
func (w *secretWatcher) update(next string) bool {
	if next == w.Secret() {
		return false
	}
	if err := session.ValidateSecret(next); err != nil {
		w.log.Warn("session secret reload rejected", zap.Error(err))
		return false
	}
	w.current.Store(&next)
	w.log.Info("session secret rotated; existing sessions are signed out")
	return true
}

// watchSecret re-reads session-secret whenever the config file changes. It
// does nothing when no config file is in use.
func watchSecret(v *viper.Viper, w *secretWatcher) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}
	v.OnConfigChange(func(fsnotify.Event) {
		w.update(v.GetString("session-secret"))
	})
	v.WatchConfig()
	return true
}
