package client

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const (
	seqClearLine = "\r\033[K"
	promptLabel  = "[Вы]: "
	headerRule   = "=================================================="
)

// terminalUI serializes everything the client prints so inbound messages do not
// interleave with the local prompt.
type terminalUI struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
	picker  ColorPicker
}

func newTerminalUI(out io.Writer, colours bool, picker ColorPicker) *terminalUI {
	if picker == nil {
		picker = newRandomColorPicker(nil)
	}
	return &terminalUI{out: out, colours: colours, picker: picker}
}

func (ui *terminalUI) writeString(s string) error {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	_, err := io.WriteString(ui.out, s)
	return err
}

// Header prints the title shown before connecting.
func Header(out io.Writer) error {
	_, err := fmt.Fprintf(out, "%s\nМНОГОПОЛЬЗОВАТЕЛЬСКИЙ ЧАТ КЛИЕНТ\n%s\n", headerRule, headerRule)
	return err
}

// Prompt writes label without a line break.
func (ui *terminalUI) Prompt(label string) error {
	return ui.writeString(label)
}

// DisplayMessage prints a chunk received from the server above a fresh prompt.
func (ui *terminalUI) DisplayMessage(chunk string) error {
	var b strings.Builder
	b.WriteString(seqClearLine)
	for _, line := range strings.Split(strings.TrimRight(chunk, "\n"), "\n") {
		b.WriteString(ui.paint(line))
		b.WriteString("\n")
	}
	b.WriteString(promptLabel)
	return ui.writeString(b.String())
}

// DisplayNotice prints a local status line.
func (ui *terminalUI) DisplayNotice(text string) error {
	return ui.writeString(seqClearLine + text + "\n")
}

// Banner greets the user and lists the available commands.
func (ui *terminalUI) Banner(name string) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n%s\nДобро пожаловать в чат, %s!\n", headerRule, name)

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Команда", "Описание"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{"/quit", "выйти из чата"})
	table.Append([]string{"/users", "список пользователей"})
	table.Render()

	buf.WriteString(headerRule + "\n\n")
	return ui.writeString(buf.String())
}

// paint colours one server line by its kind: server notices, joins, departures
// and relayed messages whose sender gets a stable colour.
func (ui *terminalUI) paint(line string) string {
	if !ui.colours || line == "" {
		return line
	}
	if strings.HasPrefix(line, "[Сервер]") {
		return color.Cyan.Sprint(line)
	}

	stamp, rest, ok := splitTimestamp(line)
	if !ok {
		return line
	}
	stamp = color.Gray.Sprint(stamp)

	switch {
	case strings.HasPrefix(rest, "🎉"):
		return stamp + color.Green.Sprint(rest)
	case strings.HasPrefix(rest, "⚡"):
		return stamp + color.Yellow.Sprint(rest)
	}

	name, text, found := strings.Cut(rest, ": ")
	if !found {
		return stamp + rest
	}
	return stamp + ui.picker.For(name).Sprint(name) + ": " + text
}

// splitTimestamp separates a leading "[HH:MM:SS] " from the rest of the line.
func splitTimestamp(line string) (stamp, rest string, ok bool) {
	const width = len("[00:00:00] ")
	if len(line) < width || line[0] != '[' || line[9] != ']' || line[10] != ' ' {
		return "", line, false
	}
	return line[:width], line[width:], true
}
