package client

import (
	"sync"

	"github.com/marigunting/presenced/internal/models"
)

// OfflinePrompt is the UI collaborator that renders the interruption. It is
// presentation only; all decisions about when to show or hide live here.
type OfflinePrompt interface {
	ShowOfflineInterruption(actorName string)
	HideOfflineInterruption()
}

// Coordinator gates the "actor went offline" interruption for one actor
// during one customer flow. Each offline transition surfaces the prompt at
// most once; duplicate offline events while it is shown are no-ops; an
// online transition auto-dismisses; after any dismissal a new offline
// transition may trigger it again.
type Coordinator struct {
	prompt    OfflinePrompt
	actorName string

	mu    sync.Mutex
	shown bool
}

func NewCoordinator(prompt OfflinePrompt, actorName string) *Coordinator {
	return &Coordinator{
		prompt:    prompt,
		actorName: actorName,
	}
}

// OnStatusChange is wired as the subscription callback. Resync updates are
// handled the same as confirmed transitions: the prompt tracks current
// state, and idempotence already absorbs repeats.
func (c *Coordinator) OnStatusChange(update StatusUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch update.Status {
	case models.StatusOffline:
		if c.shown {
			return
		}
		c.shown = true
		c.prompt.ShowOfflineInterruption(c.actorName)
	case models.StatusOnline:
		if !c.shown {
			return
		}
		c.shown = false
		c.prompt.HideOfflineInterruption()
	}
}

// Dismiss records that the user closed the interruption themselves. The UI
// already tore the modal down, so the prompt is not called again; the next
// offline transition can re-trigger it.
func (c *Coordinator) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shown = false
}
