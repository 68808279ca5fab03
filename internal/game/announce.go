package game

import (
	"go.uber.org/zap"
)

// ChatLine joins an optional sender and a message the way chat lines are relayed.
func ChatLine(sender, message string) string {
	if sender == "" {
		return message
	}
	if message == "" {
		return sender
	}
	return sender + " " + message
}

// Announcer sends chat through a ChatTransport and mirrors every broadcast to the log as
// "[Broadcast] <sender> <message>". Transport failures are logged and never returned.
type Announcer struct {
	transport ChatTransport
	log       *zap.Logger
}

// NewAnnouncer returns an Announcer delivering through transport.
func NewAnnouncer(transport ChatTransport, log *zap.Logger) *Announcer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Announcer{transport: transport, log: log}
}

// Broadcast sends a message from sender, which may be empty, to every session.
func (a *Announcer) Broadcast(sender, message string) {
	text := ChatLine(sender, message)
	a.log.Info("[Broadcast] " + text)
	if err := a.transport.BroadcastAll(text); err != nil {
		a.log.Warn("broadcast failed", zap.Error(err))
	}
}

// Send delivers a message from sender to one session. Sessions that are no longer connected are
// skipped.
func (a *Announcer) Send(session Session, sender, message string) {
	if session == nil || !session.Connected() {
		return
	}
	if err := a.transport.SendTo(session, ChatLine(sender, message)); err != nil {
		a.log.Warn("chat message failed", zap.String("session", session.ID()), zap.Error(err))
	}
}
