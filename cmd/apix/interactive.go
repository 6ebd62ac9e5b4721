package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackcoderx/apix/pkg/storage"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type sendFunc func(ctx context.Context) (storage.ResponseSet, error)

type sendDoneMsg struct {
	set storage.ResponseSet
	err error
}

// sendModel shows a spinner while one send is in flight. Esc or ctrl+c
// cancels the send; the store then records the failure as usual.
type sendModel struct {
	spinner spinner.Model
	label   string
	send    sendFunc
	ctx     context.Context
	cancel  context.CancelFunc

	done bool
	set  storage.ResponseSet
	err  error
}

func newSendModel(ctx context.Context, label string, send sendFunc) sendModel {
	ctx, cancel := context.WithCancel(ctx)
	return sendModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
		label:   label,
		send:    send,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (m sendModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		set, err := m.send(m.ctx)
		return sendDoneMsg{set: set, err: err}
	})
}

func (m sendModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sendDoneMsg:
		m.done, m.set, m.err = true, msg.set, msg.err
		m.cancel()
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancel()
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m sendModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + dimStyle.Render(m.label)
}

// sendWithSpinner runs send under a spinner drawn on out.
func sendWithSpinner(ctx context.Context, out io.Writer, label string, send sendFunc) (storage.ResponseSet, error) {
	final, err := tea.NewProgram(newSendModel(ctx, label, send), tea.WithOutput(out)).Run()
	if err != nil {
		return storage.ResponseSet{}, fmt.Errorf("run spinner: %w", err)
	}
	m := final.(sendModel)
	return m.set, m.err
}

// stepItem is one response of a chain in the step picker.
type stepItem struct {
	index int
	resp  storage.Response
}

func (i stepItem) Title() string {
	return fmt.Sprintf("Step %d  %d %s", i.index+1, i.resp.StatusCode, i.resp.StatusText)
}

func (i stepItem) Description() string {
	return fmt.Sprintf("%d ms  %s", i.resp.ResponseTime, humanize.Bytes(uint64(max(i.resp.Size, 0))))
}

func (i stepItem) FilterValue() string { return i.Title() }

// stepPicker lets the operator choose which step of a chain to view.
type stepPicker struct {
	list   list.Model
	chosen int
	picked bool
	quit   bool
}

func newStepPicker(set storage.ResponseSet) stepPicker {
	items := make([]list.Item, len(set.Responses))
	for i, r := range set.Responses {
		items[i] = stepItem{index: i, resp: r}
	}
	l := list.New(items, list.NewDefaultDelegate(), 60, 3*len(items)+4)
	l.Title = fmt.Sprintf("%d responses, pick one to view", len(items))
	l.Styles.Title = accentStyle
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.Select(set.Selected)
	return stepPicker{list: l, chosen: set.Selected}
}

func (m stepPicker) Init() tea.Cmd { return nil }

func (m stepPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.chosen, m.picked = m.list.Index(), true
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m stepPicker) View() string {
	if m.picked || m.quit {
		return ""
	}
	return m.list.View()
}

// pickStep asks which step of set to view. ok is false when the picker was
// dismissed.
func pickStep(out io.Writer, set storage.ResponseSet) (index int, ok bool, err error) {
	final, err := tea.NewProgram(newStepPicker(set), tea.WithOutput(out)).Run()
	if err != nil {
		return 0, false, fmt.Errorf("run step picker: %w", err)
	}
	m := final.(stepPicker)
	return m.chosen, m.picked, nil
}
