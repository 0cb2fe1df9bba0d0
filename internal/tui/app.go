package tui

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/service"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// PredictionQuerier is the slice of the predictor service the dashboard needs.
type PredictionQuerier interface {
	Predict(ctx context.Context, symbol string) (*domain.PredictionRecord, error)
	PredictAll(ctx context.Context) (*service.PredictionBatch, error)
}

// AdvisorQuerier explains a prediction in plain language. Optional.
type AdvisorQuerier interface {
	Explain(ctx context.Context, symbol string) (string, error)
}

type Services struct {
	Predictions PredictionQuerier
	Advisor     AdvisorQuerier
	Username    string
}

type view int

const (
	viewTable view = iota
	viewDetail
)

type predictionsMsg struct {
	records []*domain.PredictionRecord
}

type commentaryMsg struct {
	symbol string
	text   string
}

type errMsg struct {
	err error
}

// AppModel is the root bubbletea model for the SSH dashboard.
type AppModel struct {
	svc Services

	view       view
	table      table.Model
	spinner    spinner.Model
	loading    bool
	records    map[string]*domain.PredictionRecord
	selected   string
	commentary string
	err        error

	width  int
	height int
}

func NewAppModel(svc Services) *AppModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	columns := []table.Column{
		{Title: "Symbol", Width: 8},
		{Title: "Signal", Width: 12},
		{Title: "Price", Width: 10},
		{Title: "Target", Width: 10},
		{Title: "Return", Width: 9},
		{Title: "Conf", Width: 6},
		{Title: "Regime", Width: 8},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(16),
	)
	tbl.SetStyles(tableStyles())

	return &AppModel{
		svc:     svc,
		table:   tbl,
		spinner: sp,
		loading: true,
		records: make(map[string]*domain.PredictionRecord),
	}
}

func (m *AppModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if height > 8 {
		m.table.SetHeight(height - 8)
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchPredictions())
}

func (m *AppModel) fetchPredictions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		batch, err := m.svc.Predictions.PredictAll(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return predictionsMsg{records: batch.Records}
	}
}

func (m *AppModel) fetchCommentary(symbol string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		text, err := m.svc.Advisor.Explain(ctx, symbol)
		if err != nil {
			return errMsg{err: err}
		}
		return commentaryMsg{symbol: symbol, text: text}
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.view == viewDetail {
				m.view = viewTable
				m.commentary = ""
				return m, nil
			}
			return m, tea.Quit
		case "r":
			m.loading = true
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.fetchPredictions())
		case "enter":
			if m.view == viewTable && len(m.table.Rows()) > 0 {
				m.selected = m.table.SelectedRow()[0]
				m.view = viewDetail
				m.commentary = ""
				if m.svc.Advisor != nil {
					return m, tea.Batch(m.spinner.Tick, m.fetchCommentary(m.selected))
				}
			}
			return m, nil
		case "esc":
			if m.view == viewDetail {
				m.view = viewTable
				m.commentary = ""
			}
			return m, nil
		}

	case predictionsMsg:
		m.loading = false
		for _, r := range msg.records {
			m.records[r.Symbol] = r
		}
		m.table.SetRows(m.buildRows())
		return m, nil

	case commentaryMsg:
		if msg.symbol == m.selected {
			m.commentary = msg.text
		}
		return m, nil

	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *AppModel) buildRows() []table.Row {
	symbols := make([]string, 0, len(m.records))
	for s := range m.records {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	rows := make([]table.Row, 0, len(symbols))
	for _, s := range symbols {
		r := m.records[s]
		rows = append(rows, table.Row{
			r.Symbol,
			string(r.Signal),
			fmt.Sprintf("%.2f", r.CurrentPrice),
			fmt.Sprintf("%.2f", r.PredictedPrice),
			fmt.Sprintf("%+.2f%%", r.PredictedReturn),
			fmt.Sprintf("%.0f", r.Confidence),
			string(r.Technical.MarketRegime),
		})
	}
	return rows
}

func (m *AppModel) View() string {
	header := titleStyle.Render("stocksense / KSE-30 forecasts")
	if m.svc.Username != "" {
		header += subtleStyle.Render("  signed in as " + m.svc.Username)
	}

	if m.loading {
		return header + "\n\n" + m.spinner.View() + " running predictions...\n"
	}
	if m.err != nil {
		return header + "\n\n" + errorStyle.Render("error: "+m.err.Error()) +
			"\n\n" + subtleStyle.Render("r refresh / q quit") + "\n"
	}

	if m.view == viewDetail {
		return header + "\n\n" + m.detailView() + "\n"
	}

	help := subtleStyle.Render("enter detail / r refresh / q quit")
	return header + "\n\n" + m.table.View() + "\n\n" + help + "\n"
}

func (m *AppModel) detailView() string {
	r, ok := m.records[m.selected]
	if !ok {
		return errorStyle.Render("no prediction for " + m.selected)
	}

	body := fmt.Sprintf(
		"%s\n\nsignal      %s (confidence %.0f)\nprice       %.2f -> %.2f in %d days (%+.2f%%)\nRSI(14)     %.1f\nvolatility  %.2f%%\nregime      %s\nagreement   %.0f%%\n\n%s",
		signalStyle(r.Signal).Render(r.Symbol+" "+string(r.Signal)),
		r.Signal, r.Confidence,
		r.CurrentPrice, r.PredictedPrice, r.HorizonDays, r.PredictedReturn,
		r.Technical.RSI14,
		r.Technical.VolatilityPct*100,
		r.Technical.MarketRegime,
		r.EnsembleAgreement,
		r.Reasoning,
	)

	if m.commentary != "" {
		body += "\n\n" + commentaryStyle.Render(m.commentary)
	} else if m.svc.Advisor != nil {
		body += "\n\n" + m.spinner.View() + " fetching commentary..."
	}

	return body + "\n\n" + subtleStyle.Render("esc back / q quit")
}
