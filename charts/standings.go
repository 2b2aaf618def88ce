package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Dosada05/volley-tournament/models"
)

const (
	chartWidth  = 800
	chartHeight = 400
)

var (
	barColor  = drawing.ColorFromHex("2a9d8f")
	leadColor = drawing.ColorFromHex("e9c46a")
	textColor = drawing.ColorFromHex("264653")
)

// StandingsPNG draws wins per entry as a bar chart, leader highlighted.
// Entries keep the order of the table.
func StandingsPNG(title string, standings []models.Standing) ([]byte, error) {
	if len(standings) == 0 {
		return noDataPNG("No matches played yet")
	}

	maxWins := 0
	bars := make([]chart.Value, len(standings))
	for i, st := range standings {
		label := st.Name
		if label == "" {
			label = fmt.Sprintf("#%d", st.EntryID)
		}
		color := barColor
		if st.Rank == 1 {
			color = leadColor
		}
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%d. %s", st.Rank, label),
			Value: float64(st.Wins),
			Style: chart.Style{FillColor: color, StrokeColor: color},
		}
		if st.Wins > maxWins {
			maxWins = st.Wins
		}
	}

	graph := chart.BarChart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: textColor},
		Width:      chartWidth,
		Height:     chartHeight,
		BarWidth:   barWidth(len(bars)),
		BarSpacing: barWidth(len(bars)) / 2,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		XAxis:      chart.Style{FontColor: textColor},
		YAxis: chart.YAxis{
			Name:  "Wins",
			Style: chart.Style{FontColor: textColor},
			// Пустой диапазон (все по нулям) go-chart не рисует.
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxWins + 1)},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render standings chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// barWidth fits n bars and their spacing into the canvas.
func barWidth(n int) int {
	w := (chartWidth - 100) * 2 / 3 / n
	if w > 60 {
		return 60
	}
	if w < 8 {
		return 8
	}
	return w
}

func noDataPNG(msg string) ([]byte, error) {
	graph := chart.Chart{
		Width:  400,
		Height: 200,
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, chartDefaults chart.Style) {
				r.SetFontColor(textColor)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				r.Text(msg, x, y)
			},
		},
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
