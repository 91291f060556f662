package services

import (
	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/lib/overlay"
)

// LoggingSpeaker stands in for the platform text-to-speech bridge. The real
// bridge lives in the mobile shell; server-side we only record what would be
// spoken.
type LoggingSpeaker struct {
	log *zap.Logger
}

// NewLoggingSpeaker returns a speaker that logs utterances.
func NewLoggingSpeaker(log *zap.Logger) *LoggingSpeaker {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingSpeaker{log: log}
}

func (s *LoggingSpeaker) Speak(text string, opts overlay.SpeechOptions) {
	s.log.Info("speaking advisory",
		zap.String("text", text),
		zap.String("language", opts.Language))
}

func (s *LoggingSpeaker) Stop() {
	s.log.Debug("speech stopped")
}

// LoggingNotifier stands in for the system-notification scheduler.
// Best-effort by contract; the arbiter swallows any error it returns.
type LoggingNotifier struct {
	log *zap.Logger
}

// NewLoggingNotifier returns a notifier that logs scheduled notifications.
func NewLoggingNotifier(log *zap.Logger) *LoggingNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingNotifier{log: log}
}

func (n *LoggingNotifier) Schedule(title, body string, data map[string]string) error {
	n.log.Info("notification scheduled",
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("data", data))
	return nil
}
