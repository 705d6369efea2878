package terminal

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"example.com/cosmiqlink/internal/download"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.link != nil {
				m.link.Close()
			}
			return m, tea.Quit
		}
	}

	switch m.uiState {
	case viewListPorts:
		return m.updatePortSelection(msg)
	case viewConnecting:
		return m.updateConnecting(msg)
	case viewDownloading:
		return m.updateDownloading(msg)
	}

	return m, nil
}

func (m model) updatePortSelection(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down":
			if m.cursor < len(m.potentialPorts)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.potentialPorts) == 0 {
				return m, nil
			}
			m.uiState = viewConnecting
			m.portName = m.potentialPorts[m.cursor]
			return m, connectToPort(m.connector, m.portName)
		}
	}

	return m, nil
}

func (m model) updateConnecting(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case connectedMsg:
		m.link = msg
		m.session = download.NewSession(m.link, download.Options{})
		if err := m.session.Start(); err != nil {
			m.err = err
			m.uiState = viewListPorts
			return m, nil
		}
		m.err = nil
		m.lastData = time.Now()
		m.uiState = viewDownloading
		return m, tea.Batch(waitForLine(m.link), tick())
	case connectErrMsg:
		m.err = msg
		m.uiState = viewListPorts
		return m, nil
	}
	return m, nil
}

func (m model) updateDownloading(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case deviceLineMsg:
		// Malformed or mismatched lines are dropped by the session; they
		// still count as link activity for the idle clock.
		m.session.OnLine(string(msg))
		m.lastData = time.Now()
		return m, waitForLine(m.link)

	case linkClosedMsg:
		if !m.session.Phase().Terminal() {
			m.session.Fail(download.ErrTransportFailure)
		}
		m.uiState = viewSummary
		return m, nil

	case tickMsg:
		if time.Since(m.lastData) < idleTimeout {
			return m, tick()
		}
		switch m.session.Phase() {
		case download.PhaseAwaitingHeader:
			if err := m.session.FinishHeaderPhase(); err != nil {
				m.err = err
				m.uiState = viewSummary
				return m, nil
			}
			m.lastData = time.Now()
			return m, tick()
		case download.PhaseAwaitingBody:
			result, err := m.session.FinishBodyPhase()
			if err != nil {
				m.err = err
			}
			m.result = result
			m.uiState = viewSummary
			return m, nil
		}
		return m, tick()
	}

	return m, nil
}
