// Package dashboard is the terminal monitor shown while the server runs.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/Martin-Hayot/car-auction/pkg/utils"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	refreshInterval = 2 * time.Second
	logLines        = 15
)

var (
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	help = helpStyle.Render("• tab: switch modes • q: exit\n")
)

// Source lists the auctions to show.
type Source interface {
	ListAuctionsByStatus(ctx context.Context, status types.Status) ([]types.Auction, error)
}

// shown are the statuses listed, in display order.
var shown = []types.Status{types.StatusOngoingAuction, types.StatusUpcomingAuction}

type tickMsg time.Time

type auctionsMsg struct {
	auctions []types.Auction
	err      error
}

func tick() tea.Cmd {
	return tea.Every(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type Model struct {
	source    Source
	now       func() time.Time
	table     table.Model
	viewport  viewport.Model
	logs      *LogBuffer
	showTable bool
	quitting  bool
}

func New(source Source, logs *LogBuffer, now func() time.Time) Model {
	columns := []table.Column{
		{Title: "AUCTION ID", Width: 38},
		{Title: "TITLE", Width: 24},
		{Title: "STATUS", Width: 16},
		{Title: "HIGHEST BID", Width: 12},
		{Title: "HIGHEST BIDDER", Width: 20},
		{Title: "TIME LEFT", Width: 14},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithHeight(10),
		table.WithFocused(true),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	vp := viewport.New(120, logLines)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return Model{source: source, now: now, table: t, viewport: vp, logs: logs, showTable: true}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

// load fetches the auctions off the UI loop.
func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()

		var all []types.Auction
		for _, status := range shown {
			auctions, err := m.source.ListAuctionsByStatus(ctx, status)
			if err != nil {
				return auctionsMsg{err: err}
			}
			all = append(all, auctions...)
		}
		return auctionsMsg{auctions: all}
	}
}

func rows(auctions []types.Auction, now time.Time) []table.Row {
	out := make([]table.Row, 0, len(auctions))
	for _, a := range auctions {
		amount, bidder := "-", "-"
		if h, ok := a.HighestBid(); ok {
			amount = h.Amount.StringFixed(2)
			bidder = h.BidderID
		}

		left := a.EndTime.Sub(now)
		if a.Status == types.StatusUpcomingAuction {
			left = a.StartTime.Sub(now)
		}
		out = append(out, table.Row{
			a.ID,
			a.Title,
			string(a.Status),
			amount,
			bidder,
			utils.FormatTimeLeft(left),
		})
	}
	return out
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tickMsg:
		return m, tea.Batch(m.load(), tick())

	case auctionsMsg:
		if msg.err != nil {
			log.Error("Error getting auctions", "err", msg.err)
			return m, nil
		}
		m.table.SetRows(rows(msg.auctions, m.now()))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "tab":
			m.showTable = !m.showTable
			return m, nil
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.showTable {
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// Render the view based on the current state of the model
func (m Model) View() string {
	if m.quitting {
		return "Bye!\n"
	}
	if m.showTable {
		title := fmt.Sprintf("%d live or upcoming auctions", len(m.table.Rows()))
		return title + "\n" + baseStyle.Render(m.table.View()) + "\n" + help
	}

	var lines []string
	if m.logs != nil {
		lines = utils.ColorizeLogs(m.logs.Lines(logLines))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	return m.viewport.View() + "\n" + help
}

// Run shows the dashboard until the user quits or ctx ends.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
