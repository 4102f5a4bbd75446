// Package view builds presentation rows for shares: the text to show and a
// rendered icon reflecting the row's mode and state.
package view

import (
	"image"

	"github.com/jamesprial/smbshare-mcp/internal/shares"
)

// Mode is how an icon is drawn.
type Mode int

const (
	ModeNormal Mode = iota
	ModeDisabled
	ModeActive
	ModeSelected
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeDisabled:
		return "disabled"
	case ModeActive:
		return "active"
	case ModeSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// State selects the on or off variant of an icon.
type State int

const (
	StateOn State = iota
	StateOff
)

func (s State) String() string {
	if s == StateOff {
		return "off"
	}
	return "on"
}

// Icon renders a square image for a size, mode and state. Implementations
// must be safe for concurrent use and return equal pixels for equal
// arguments.
type Icon interface {
	Render(size int, mode Mode, state State) image.Image
}

// ItemData is what a presentation layer needs to draw one share row.
// ItemData is a value type; copies hold independent shares. Icons are
// shared between copies and are never mutated.
type ItemData struct {
	share          shares.Share
	showMountPoint bool
	icon           Icon
	mode           Mode
	state          State
}

// NewItemData returns a row for share without an icon.
func NewItemData(share shares.Share) ItemData {
	return ItemData{share: share}
}

func (d ItemData) Share() shares.Share  { return d.share }
func (d ItemData) ShowMountPoint() bool { return d.showMountPoint }
func (d ItemData) Icon() Icon           { return d.icon }
func (d ItemData) Mode() Mode           { return d.mode }
func (d ItemData) State() State         { return d.state }

// SetShare replaces the share.
func (d *ItemData) SetShare(share shares.Share) { d.share = share }

// SetShowMountPoint selects whether DisplayName prefers the mount path.
func (d *ItemData) SetShowMountPoint(show bool) { d.showMountPoint = show }

// SetIcon sets the icon together with the mode and state it is drawn in.
func (d *ItemData) SetIcon(icon Icon, mode Mode, state State) {
	d.icon = icon
	d.mode = mode
	d.state = state
}

// Pixmap renders the icon at size×size in the current mode and state. It
// renders on every call; nothing is cached. A nil icon yields nil.
func (d ItemData) Pixmap(size int) image.Image {
	if d.icon == nil || size <= 0 {
		return nil
	}
	return d.icon.Render(size, d.mode, d.state)
}

// DisplayName is the row's label: the mount path when showMountPoint is
// set and the share is mounted, otherwise the UNC.
func (d ItemData) DisplayName() string {
	if d.showMountPoint && d.share.IsMounted() {
		return d.share.MountPath
	}
	return d.share.UNC()
}

// Clone returns an independent copy of d.
func (d ItemData) Clone() ItemData {
	d.share = d.share.Clone()
	return d
}
