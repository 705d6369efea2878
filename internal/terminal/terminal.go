package terminal

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"example.com/cosmiqlink/internal/download"
	"example.com/cosmiqlink/internal/transport"
)

type uiState int

const (
	viewListPorts uiState = iota
	viewConnecting
	viewDownloading
	viewSummary
)

// The device never announces the end of a dump stream; it just goes quiet.
// After idleTimeout without a data line the active phase is considered done.
const (
	idleTimeout  = 1500 * time.Millisecond
	tickInterval = 250 * time.Millisecond
)

type PortLister func() ([]string, error)
type PortConnector func(string) (transport.Line, error)

type connectedMsg transport.Line
type connectErrMsg error
type deviceLineMsg string
type linkClosedMsg struct{}
type tickMsg time.Time

// model is the internal state of the TUI. Update returns a new model each
// time rather than mutating through a pointer.
type model struct {
	uiState uiState
	cursor  int
	err     error

	potentialPorts []string
	portName       string
	connector      PortConnector
	link           transport.Line

	session  *download.Session
	lastData time.Time
	result   *download.Result
}

func StartApplication(portLister PortLister, connector PortConnector, logger *zap.Logger) {
	if _, err := tea.NewProgram(initialModel(portLister, connector)).Run(); err != nil {
		logger.Fatal("Error starting TUI program", zap.Error(err))
		os.Exit(1)
	}
}

func initialModel(portLister PortLister, connector PortConnector) model {
	ports, err := portLister()
	if err != nil {
		panic(fmt.Sprintf("Unable to list serial ports: %v", err))
	}

	return model{
		uiState:        viewListPorts,
		potentialPorts: ports,
		connector:      connector,
	}
}

func connectToPort(connector PortConnector, port string) tea.Cmd {
	return func() tea.Msg {
		link, err := connector(port)
		if err != nil {
			return connectErrMsg(err)
		}
		return connectedMsg(link)
	}
}

// waitForLine blocks on the transport until the device speaks or the link
// closes.
func waitForLine(link transport.Line) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-link.Lines()
		if !ok {
			return linkClosedMsg{}
		}
		return deviceLineMsg(line)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) View() string {
	s := headerStyle.Render("cosmiqctl") + "\n\n"
	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n"
	}

	switch m.uiState {
	case viewListPorts:
		s += "Select a port:\n\n"
		if len(m.potentialPorts) == 0 {
			s += mutedStyle.Render("  no serial ports found") + "\n"
		}
		for i, port := range m.potentialPorts {
			s += fmt.Sprintf("%s %s\n", renderCursor(i == m.cursor), renderPortName(port, i == m.cursor))
		}
		s += "\n" + renderHint("up/down to move, enter to connect, q to quit")
	case viewConnecting:
		s += fmt.Sprintf("Connecting to %s...\n", m.portName)
	case viewDownloading:
		s += m.viewDownloadProgress()
	case viewSummary:
		s += m.viewSummary()
	}

	return containerStyle.Render(s)
}

func (m model) viewDownloadProgress() string {
	header, body := m.session.Progress()
	phase := m.session.Phase()

	s := fmt.Sprintf("Downloading from %s\n\n", m.portName)
	s += fmt.Sprintf("%s header  %s\n", renderPhaseIcon(phase, download.PhaseAwaitingHeader), renderByteCount(header))
	s += fmt.Sprintf("%s body    %s\n", renderPhaseIcon(phase, download.PhaseAwaitingBody), renderByteCount(body))
	s += "\n" + renderHint("phases complete when the device goes quiet; q to abort")
	return s
}

func (m model) viewSummary() string {
	if m.result == nil {
		return errorStyle.Render("Download failed.") + "\n\n" + renderHint("q to quit")
	}

	s := successStyle.Render("Download complete") + "\n\n"
	s += fmt.Sprintf("Dives: %d\n", len(m.result.Headers))
	for _, hdr := range m.result.Headers {
		samples, err := m.result.ExtractSamples(hdr)
		count := "-"
		if err == nil {
			count = fmt.Sprintf("%d samples", len(samples))
		}
		s += fmt.Sprintf("  #%-3d %s  %s  %s\n", hdr.LogNumber, hdr.Date.String(), hdr.Mode, mutedStyle.Render(count))
	}
	s += "\n" + mutedStyle.Render("fingerprint "+m.result.Fingerprint()) + "\n"
	s += "\n" + renderHint("q to quit")
	return s
}
