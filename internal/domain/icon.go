package domain

import "strings"

// Icon is one of the fixed marker glyphs.
type Icon string

const (
	IconBed      Icon = "bed"
	IconDoor     Icon = "door"
	IconDining   Icon = "dining"
	IconPool     Icon = "pool"
	IconDumbbell Icon = "dumbbell"
	IconSoap     Icon = "soap"
	IconElevator Icon = "elevator"
	IconRestroom Icon = "restroom"
	IconLuggage  Icon = "luggage"
	IconCoffee   Icon = "coffee"
	IconBell     Icon = "bell"
	IconLock     Icon = "lock"
)

// DefaultIcon is used when no icon is chosen.
const DefaultIcon = IconBed

var iconGlyphs = []struct {
	icon  Icon
	glyph string
}{
	{IconBed, "🛏️"},
	{IconDoor, "🚪"},
	{IconDining, "🍽️"},
	{IconPool, "🏊"},
	{IconDumbbell, "💪"},
	{IconSoap, "🧼"},
	{IconElevator, "🛗"},
	{IconRestroom, "🚻"},
	{IconLuggage, "🧳"},
	{IconCoffee, "☕"},
	{IconBell, "🛎️"},
	{IconLock, "🔒"},
}

// Icons lists every icon in picker order.
func Icons() []Icon {
	out := make([]Icon, len(iconGlyphs))
	for i, g := range iconGlyphs {
		out[i] = g.icon
	}
	return out
}

// Glyph returns the emoji rendered for the icon.
func (i Icon) Glyph() string {
	for _, g := range iconGlyphs {
		if g.icon == i {
			return g.glyph
		}
	}
	return ""
}

// Valid reports whether i belongs to the enumeration.
func (i Icon) Valid() bool {
	return i.Glyph() != ""
}

// ParseIcon accepts an icon name or its glyph. The variation selector
// (U+FE0F) is ignored when matching glyphs.
func ParseIcon(s string) (Icon, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultIcon, true
	}
	if Icon(strings.ToLower(s)).Valid() {
		return Icon(strings.ToLower(s)), true
	}
	bare := strings.ReplaceAll(s, "\uFE0F", "")
	for _, g := range iconGlyphs {
		if strings.ReplaceAll(g.glyph, "\uFE0F", "") == bare {
			return g.icon, true
		}
	}
	return "", false
}
