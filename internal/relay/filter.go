package relay

import (
	"fmt"
	"strings"

	"github.com/flemzord/relayctl/pkg/message"
)

// Category is one media filter class.
type Category string

const (
	Video    Category = "video"
	PDF      Category = "pdf"
	Text     Category = "text"
	Image    Category = "image"
	Audio    Category = "audio"
	Document Category = "document"
)

// CategoryOrder is the match priority. A message matching several enabled
// categories is sent once, under the first one in this order.
var CategoryOrder = [...]Category{Video, PDF, Text, Image, Audio, Document}

// Label is the human name of the category shown on buttons and reports.
func (c Category) Label() string {
	switch c {
	case Video:
		return "Videos"
	case PDF:
		return "PDFs"
	case Text:
		return "Text"
	case Image:
		return "Images"
	case Audio:
		return "Audio"
	case Document:
		return "Docs"
	}
	return string(c)
}

// ParseCategory accepts a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range CategoryOrder {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("relay: unknown category %q", s)
}

type rule struct {
	category Category
	matches  func(*message.Message) bool
}

var rules = []rule{
	{Video, func(m *message.Message) bool { return m.Video }},
	{PDF, func(m *message.Message) bool { return m.Document.IsPDF() }},
	{Text, func(m *message.Message) bool { return m.Text != "" && !m.HasMedia() }},
	{Image, func(m *message.Message) bool { return m.Photo }},
	{Audio, func(m *message.Message) bool { return m.Audio }},
	{Document, func(m *message.Message) bool { return m.Document != nil && !m.Document.IsPDF() }},
}

// Filters is the set of enabled categories. The zero value enables nothing.
type Filters struct {
	Video    bool
	PDF      bool
	Text     bool
	Image    bool
	Audio    bool
	Document bool
}

func (f *Filters) flag(c Category) *bool {
	switch c {
	case Video:
		return &f.Video
	case PDF:
		return &f.PDF
	case Text:
		return &f.Text
	case Image:
		return &f.Image
	case Audio:
		return &f.Audio
	case Document:
		return &f.Document
	}
	return nil
}

// Enabled reports whether c is on.
func (f Filters) Enabled(c Category) bool {
	if p := f.flag(c); p != nil {
		return *p
	}
	return false
}

// Set turns c on or off. Unknown categories are ignored.
func (f *Filters) Set(c Category, on bool) {
	if p := f.flag(c); p != nil {
		*p = on
	}
}

// EnabledCategories lists the enabled categories in match order.
func (f Filters) EnabledCategories() []Category {
	var out []Category
	for _, c := range CategoryOrder {
		if f.Enabled(c) {
			out = append(out, c)
		}
	}
	return out
}

// Match returns the first enabled category msg belongs to.
func (f Filters) Match(msg *message.Message) (Category, bool) {
	if msg == nil {
		return "", false
	}
	for _, r := range rules {
		if f.Enabled(r.category) && r.matches(msg) {
			return r.category, true
		}
	}
	return "", false
}
