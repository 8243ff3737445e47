package client

import (
	log "github.com/sirupsen/logrus"
)

// LogNotifier returns a subscriber that writes every notification to logger
func LogNotifier(logger log.FieldLogger) func(Notification) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return func(n Notification) {
		entry := logger.WithFields(
			log.Fields{
				"op":      n.Op,
				"success": n.Success,
			},
		)
		if n.ID != "" {
			entry = entry.WithField("id", n.ID)
		}
		if len(n.Added) > 0 || len(n.Removed) > 0 {
			entry = entry.WithFields(
				log.Fields{
					"added":   len(n.Added),
					"removed": len(n.Removed),
				},
			)
		}
		if !n.Success {
			entry.WithField("kind", n.Kind.String()).Warn(n.Message)
			return
		}
		entry.Info(n.Message)
	}
}
