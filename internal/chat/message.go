package chat

import (
	"fmt"
	"time"
)

const timestampLayout = "15:04:05"

// Message is one broadcast line. It is built, written to every recipient and dropped.
type Message struct {
	At   time.Time
	Text string
}

// NewMessage stamps text with at.
func NewMessage(at time.Time, text string) Message {
	return Message{At: at, Text: text}
}

// Label returns the HH:MM:SS timestamp.
func (m Message) Label() string {
	return m.At.Format(timestampLayout)
}

// Line returns the wire form: "[HH:MM:SS] <text>\n".
func (m Message) Line() string {
	return "[" + m.Label() + "] " + m.Text + "\n"
}

// JoinNotice announces a new member to the others.
func JoinNotice(name string) string {
	return fmt.Sprintf("🎉 %s присоединился(ась) к чату!", name)
}

// DepartureNotice announces that a member is gone, whatever the reason.
func DepartureNotice(name string) string {
	return fmt.Sprintf("⚡ %s покинул(а) чат", name)
}

// RelayText prefixes a chat payload with its sender name.
func RelayText(name, text string) string {
	return name + ": " + text
}

// WelcomeText is sent privately to a new member, without a timestamp.
func WelcomeText(name string, members int) string {
	return fmt.Sprintf("[Сервер] Добро пожаловать в чат, %s! Участников онлайн: %d", name, members)
}
