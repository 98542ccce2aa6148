// Package inject delivers recognized text into the focused application. The
// default strategy copies the text to the system clipboard and sends the
// platform paste chord, then restores the previous clipboard contents after a
// short delay so dictation does not clobber whatever the user had copied.
package inject

import (
	"time"

	cb "github.com/atotto/clipboard"

	"scribe/log"
)

// restoreDelay gives the focused application time to consume the paste before
// the previous clipboard contents come back.
const restoreDelay = 300 * time.Millisecond

type Clipboard struct {
	// autoPaste sends the paste chord after copying. When false the text is
	// left on the clipboard (and not restored) for the user to paste manually.
	autoPaste bool
}

func NewClipboard(autoPaste bool) *Clipboard {
	return &Clipboard{autoPaste: autoPaste}
}

func (c *Clipboard) Inject(text string) error {
	prev, prevErr := cb.ReadAll()

	if err := cb.WriteAll(text); err != nil {
		return err
	}
	if !c.autoPaste {
		return nil
	}

	if err := sendPasteChord(); err != nil {
		return err
	}

	if prevErr == nil {
		time.Sleep(restoreDelay)
		if err := cb.WriteAll(prev); err != nil {
			log.Warnf("clipboard restore: %v", err)
		}
	}
	return nil
}
