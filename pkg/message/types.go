// Package message defines the platform-agnostic data contract between the
// messaging channel and the relay controller. It covers observed messages,
// button presses, chat references, and inline keyboards.
package message

import (
	"strings"
	"time"
)

// PDFMIMEType is the MIME type that separates the pdf and document filter categories.
const PDFMIMEType = "application/pdf"

// Document describes a file attachment.
type Document struct {
	MIMEType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// IsPDF reports whether the document is a PDF file.
func (d *Document) IsPDF() bool {
	return d != nil && strings.EqualFold(d.MIMEType, PDFMIMEType)
}

// Message is a message observed in, or fetched from, a conversation.
//
// Media attributes are independent: a video may also carry a Document
// describing the underlying file, the same way the platform stores it.
type Message struct {
	ChatID   int64     `json:"chat_id"`
	ID       int       `json:"id"`
	ThreadID int       `json:"thread_id,omitempty"` // 0 = no thread association
	SenderID int64     `json:"sender_id,omitempty"`
	Date     time.Time `json:"date"`

	// Text holds the message text, or the caption of a media message.
	Text string `json:"text,omitempty"`

	Video    bool      `json:"video,omitempty"`
	Photo    bool      `json:"photo,omitempty"`
	Audio    bool      `json:"audio,omitempty"`
	Document *Document `json:"document,omitempty"`

	// Other marks media no filter category covers (stickers, locations, polls...).
	Other bool `json:"other,omitempty"`
}

// HasMedia reports whether the message carries any media at all.
func (m *Message) HasMedia() bool {
	return m.Video || m.Photo || m.Audio || m.Document != nil || m.Other
}

// InThread reports whether the message belongs to a thread.
func (m *Message) InThread() bool {
	return m.ThreadID != 0
}

// IsCommand reports whether the message text is a slash command.
func (m *Message) IsCommand() bool {
	return strings.HasPrefix(m.Text, "/")
}

// Callback is a button press on an inline keyboard.
type Callback struct {
	ID        string `json:"id"`
	SenderID  int64  `json:"sender_id"`
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Data      string `json:"data"`
}

// Update is one inbound event. Exactly one field is set.
type Update struct {
	Message  *Message  `json:"message,omitempty"`
	Callback *Callback `json:"callback,omitempty"`
}

// Sent identifies a message delivered by the bot.
type Sent struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// Button is one inline keyboard button.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Keyboard is a grid of inline buttons, row by row.
type Keyboard [][]Button

// Command is one entry of the bot's command menu.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
