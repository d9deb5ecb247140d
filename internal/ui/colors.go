package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/trueshuffle/internal/models"
)

var styles = NewPalette("#1DB954", "#1ED760", "#E22134", "#FFA42B", "#727272")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	bar   lipgloss.Style
	dim   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		bar:   NewStyle(s),
		dim:   NewStyle(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// status picks the style for a run status badge.
func (p *Palette) status(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusPlaying, models.StatusCompleted:
		return p.ok
	case models.StatusOverriding, models.StatusNoDevice, models.StatusStarting:
		return p.warn
	case models.StatusFailed:
		return p.err
	default:
		return p.dim
	}
}
