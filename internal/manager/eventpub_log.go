package manager

import "github.com/rs/zerolog"

// LogPublisher writes lifecycle events to a zerolog logger. Load errors are
// logged at error level, everything else at info.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Logger.Info()
	if e.Name == EventLoadError {
		ev = p.Logger.Error()
	}
	ev.Str("event", e.Name).Fields(e.Fields).Msg("model lifecycle")
}
