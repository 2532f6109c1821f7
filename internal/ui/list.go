package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/ojtools/ojsync/internal/formatter"
	"github.com/ojtools/ojsync/internal/models"
)

var _ list.Item = pendingItem{}

// pendingItem wraps a pending [models.Submission] to implement [list.Item].
type pendingItem struct {
	sub         models.Submission
	destination string
}

func (i pendingItem) FilterValue() string { return i.sub.Title }
func (i pendingItem) Title() string       { return formatter.CardName(i.sub) }
func (i pendingItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.sub.Judge, i.sub.Language)
	if i.destination != "" {
		desc = fmt.Sprintf("%s → %s", desc, i.destination)
	}
	return desc
}
