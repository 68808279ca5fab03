package chat

import (
	"errors"

	"github.com/reedfamily/serverkit/internal/game"
)

// Tee broadcasts to every transport it holds and delivers targeted messages through the first
// transport that owns the session.
type Tee []game.ChatTransport

func (t Tee) BroadcastAll(text string) error {
	var errs []error
	for _, tr := range t {
		if err := tr.BroadcastAll(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) SendTo(session game.Session, text string) error {
	for _, tr := range t {
		err := tr.SendTo(session, text)
		if errors.Is(err, game.ErrSessionNotFound) {
			continue
		}
		return err
	}
	return game.ErrSessionNotFound
}

var _ game.ChatTransport = Tee(nil)
