package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ledzpl/tchat/internal/chat"
)

const usersCommand = "/users"

const (
	textAskName      = "Введите ваше имя: "
	textEmptyName    = "Имя не может быть пустым. Введите ваше имя: "
	textNameFailed   = "Ошибка при отправке имени"
	textSendFailed   = "Ошибка отправки сообщения"
	textDisconnected = "Соединение с сервером разорвано"
	textUsers        = "Информация о пользователях недоступна в этой версии"
	textLeaving      = "Выход из чата..."
	textFinished     = "Чат завершен"
	textInputFailed  = "Ошибка чтения ввода"
)

var errQuit = errors.New("client: quit requested")

// Option configures a Session.
type Option func(*Session)

// WithColours toggles colourized output.
func WithColours(enabled bool) Option {
	return func(s *Session) {
		s.colours = enabled
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithColorPicker overrides how sender colours are chosen.
func WithColorPicker(picker ColorPicker) Option {
	return func(s *Session) {
		s.picker = picker
	}
}

// Session is the operator side of one chat connection: it forwards typed lines
// to the server and prints whatever the server sends.
type Session struct {
	conn  io.ReadWriteCloser
	input io.Reader
	ui    *terminalUI
	log   *slog.Logger

	colours bool
	picker  ColorPicker

	running atomic.Bool
	inbound sync.WaitGroup
}

// New creates a Session over conn reading operator input from input.
func New(conn io.ReadWriteCloser, input io.Reader, output io.Writer, opts ...Option) *Session {
	s := &Session{
		conn:    conn,
		input:   input,
		log:     slog.Default(),
		colours: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ui = newTerminalUI(output, s.colours, s.picker)
	return s
}

// Dial connects to a chat server.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return conn, nil
}

// Run asks for a name, registers it with the server and relays messages until the
// user quits, the server hangs up or ctx is cancelled. The connection is closed on return.
func (s *Session) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	defer s.shutdown()

	input := pumpLines(s.input, done)

	name, err := s.askName(ctx, input)
	if err != nil {
		return err
	}
	if err := s.send(name); err != nil {
		_ = s.ui.DisplayNotice(textNameFailed)
		return fmt.Errorf("client: send name: %w", err)
	}

	s.running.Store(true)
	inboundDone := s.startInbound()

	if err := s.ui.Banner(name); err != nil {
		s.log.Debug("Banner write failed", "error", err)
	}
	_ = s.ui.Prompt(promptLabel)
	return s.outbound(ctx, input, inboundDone)
}

func (s *Session) askName(ctx context.Context, input *linePump) (string, error) {
	label := textAskName
	for {
		if err := s.ui.Prompt(label); err != nil {
			return "", fmt.Errorf("client: prompt: %w", err)
		}
		select {
		case <-ctx.Done():
			_ = s.ui.DisplayNotice(textLeaving)
			return "", ctx.Err()
		case line, ok := <-input.lines:
			if !ok {
				return "", s.inputEnded(input)
			}
			if name := strings.TrimSpace(line); name != "" {
				return name, nil
			}
			label = textEmptyName
		}
	}
}

func (s *Session) outbound(ctx context.Context, input *linePump, inboundDone <-chan struct{}) error {
	for s.running.Load() {
		select {
		case <-ctx.Done():
			_ = s.ui.DisplayNotice(textLeaving)
			return nil
		case <-inboundDone:
			return nil
		case line, ok := <-input.lines:
			if !ok {
				if err := s.inputEnded(input); !errors.Is(err, io.EOF) {
					return err
				}
				return nil
			}
			err := s.handleLine(strings.TrimSpace(line))
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) handleLine(msg string) error {
	switch {
	case msg == "":
		return s.ui.Prompt(promptLabel)
	case strings.EqualFold(msg, chat.QuitCommand):
		s.running.Store(false)
		if err := s.send(chat.QuitCommand); err != nil {
			s.log.Debug("Quit command not delivered", "error", err)
		}
		return errQuit
	case strings.EqualFold(msg, usersCommand):
		if err := s.ui.DisplayNotice(textUsers); err != nil {
			return err
		}
		return s.ui.Prompt(promptLabel)
	}

	if err := s.send(msg); err != nil {
		s.running.Store(false)
		_ = s.ui.DisplayNotice(textSendFailed)
		return fmt.Errorf("client: send: %w", err)
	}
	return s.ui.Prompt(promptLabel)
}

func (s *Session) startInbound() <-chan struct{} {
	done := make(chan struct{})
	s.inbound.Add(1)
	go func() {
		defer s.inbound.Done()
		defer close(done)

		buf := make([]byte, chat.ReadBufferSize)
		for {
			n, err := s.conn.Read(buf)
			if n > 0 {
				if werr := s.ui.DisplayMessage(string(buf[:n])); werr != nil {
					s.log.Debug("Display failed", "error", werr)
				}
			}
			if err != nil {
				// Only report the hang-up when nothing local asked to stop.
				if s.running.Swap(false) {
					s.log.Debug("Connection lost", "error", err)
					_ = s.ui.DisplayNotice(textDisconnected)
				}
				return
			}
		}
	}()
	return done
}

func (s *Session) send(text string) error {
	_, err := io.WriteString(s.conn, text+"\n")
	return err
}

func (s *Session) shutdown() {
	s.running.Store(false)
	if err := s.conn.Close(); err != nil {
		s.log.Debug("Connection close failed", "error", err)
	}
	s.inbound.Wait()
	_ = s.ui.DisplayNotice(textFinished)
}

// inputEnded reports why operator input stopped: io.EOF, or the read error.
func (s *Session) inputEnded(input *linePump) error {
	if input.err == nil {
		return io.EOF
	}
	_ = s.ui.DisplayNotice(textInputFailed)
	return fmt.Errorf("client: input: %w", input.err)
}

// linePump feeds operator lines into a channel. err is set before lines is closed.
type linePump struct {
	lines chan string
	err   error
}

// pumpLines reads r line by line, without a length limit, until input ends or done is closed.
func pumpLines(r io.Reader, done <-chan struct{}) *linePump {
	p := &linePump{lines: make(chan string)}
	go func() {
		defer close(p.lines)
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case p.lines <- strings.TrimRight(line, "\r\n"):
				case <-done:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					p.err = err
				}
				return
			}
		}
	}()
	return p
}
