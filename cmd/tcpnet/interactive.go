package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/tcpnet/codec"
	"github.com/wippyai/tcpnet/tcp"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	receivedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const maxTranscript = 500

type sessionState int

const (
	stateConnecting sessionState = iota
	stateConnected
	stateClosed
)

type interactiveModel struct {
	err        error
	sock       *tcp.Socket
	notify     func(tea.Msg)
	enc        codec.Encoding
	target     string
	status     string
	transcript []string
	partial    string
	input      textinput.Model
	height     int
	width      int
	state      sessionState
}

type connectedMsg struct {
	local  string
	remote string
}

type dataMsg struct {
	text string
}

type socketErrMsg struct {
	err error
}

type endMsg struct{}

type closedMsg struct {
	hadError bool
}

func newInteractiveModel(sock *tcp.Socket, target string, enc codec.Encoding, notify func(tea.Msg)) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "type a line and press enter"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		sock:   sock,
		notify: notify,
		enc:    enc,
		target: target,
		status: "connecting to " + target,
		input:  ti,
		state:  stateConnecting,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.sock.Loop().Post(func() { m.sock.Destroy(nil) })
			return m, tea.Quit

		case "ctrl+d":
			if m.state == stateConnected {
				m.sock.Loop().Post(func() { m.sock.End(nil, nil) })
				m.status = "write side closed"
				m.input.Blur()
			}
			return m, nil

		case "esc":
			if m.state == stateClosed {
				return m, tea.Quit
			}

		case "enter":
			if m.state != stateConnected {
				return m, nil
			}
			line := m.input.Value()
			m.input.SetValue("")
			m.append(sentStyle.Render("→ " + line))
			m.sock.Loop().Post(func() {
				if _, err := m.sock.WriteString(line+"\n", m.enc, nil); err != nil {
					m.notify(socketErrMsg{err: err})
				}
			})
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)

	case connectedMsg:
		m.state = stateConnected
		m.status = fmt.Sprintf("connected %s → %s", msg.local, msg.remote)

	case dataMsg:
		m.receive(msg.text)

	case endMsg:
		m.flushPartial()
		m.status = "peer ended"

	case socketErrMsg:
		m.err = msg.err

	case closedMsg:
		m.flushPartial()
		m.state = stateClosed
		m.input.Blur()
		if msg.hadError {
			m.status = "closed with error"
		} else {
			m.status = "closed"
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) receive(text string) {
	text = m.partial + text
	lines := strings.Split(text, "\n")
	m.partial = lines[len(lines)-1]
	for _, l := range lines[:len(lines)-1] {
		m.append(receivedStyle.Render("← " + strings.TrimRight(l, "\r")))
	}
}

func (m *interactiveModel) flushPartial() {
	if m.partial != "" {
		m.append(receivedStyle.Render("← " + m.partial))
		m.partial = ""
	}
}

func (m *interactiveModel) append(line string) {
	m.transcript = append(m.transcript, line)
	if len(m.transcript) > maxTranscript {
		m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tcpnet"))
	b.WriteString(" ")
	b.WriteString(m.target)
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n\n")

	visible := m.transcript
	if room := m.height - 8; room > 0 && len(visible) > room {
		visible = visible[len(visible)-room:]
	}
	for _, l := range visible {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	switch m.state {
	case stateClosed:
		b.WriteString(helpStyle.Render("esc quit"))
	default:
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter send • ctrl+d end • ctrl+c quit"))
	}

	return b.String()
}

func runInteractive(opts tcp.ConnectOptions, sockOpts tcp.SocketOptions, enc codec.Encoding) error {
	sock := tcp.NewSocket(sockOpts)
	target := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	// socket events reach the program in order through one forwarder
	events := make(chan tea.Msg, 256)
	notify := func(msg tea.Msg) { events <- msg }

	program := tea.NewProgram(newInteractiveModel(sock, target, enc, notify), tea.WithAltScreen())
	go func() {
		for msg := range events {
			program.Send(msg)
		}
	}()

	sock.Loop().Do(func() {
		sock.SetEncoding(enc)
		sock.OnData(func(d tcp.Data) { notify(dataMsg{text: d.String()}) })
		sock.OnEnd(func() { notify(endMsg{}) })
		sock.OnError(func(err error) { notify(socketErrMsg{err: err}) })
		sock.OnClose(func(hadError bool) { notify(closedMsg{hadError: hadError}) })
		sock.Connect(opts, func() {
			notify(connectedMsg{local: sock.LocalAddress(), remote: sock.RemoteAddress()})
		})
	})

	_, err := program.Run()
	sock.Loop().Do(func() { sock.Destroy(nil) })
	return err
}
