package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleConvergenceChart renders the per-step velocity delta history as
// an HTML line chart. By default it shows the current session; pass
// run_id to chart a recorded run from the store instead.
func (s *Server) handleConvergenceChart(w http.ResponseWriter, r *http.Request) {
	var (
		deltas []float64
		label  string
	)

	if runID := r.URL.Query().Get("run_id"); runID != "" {
		if s.store == nil {
			s.writeJSONError(w, http.StatusNotFound, "run store not configured")
			return
		}
		steps, err := s.store.GetRunSteps(runID)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, st := range steps {
			deltas = append(deltas, st.Delta)
		}
		label = runID
	} else {
		state := s.runner.State()
		deltas = state.Deltas
		label = state.RunID
	}

	if len(deltas) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no convergence history available")
		return
	}

	xAxis := make([]string, len(deltas))
	data := make([]opts.LineData, len(deltas))
	for i, d := range deltas {
		xAxis[i] = fmt.Sprintf("%d", i+1)
		data[i] = opts.LineData{Value: d}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Convergence History", Theme: "dark", Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Max Velocity Delta per Step", Subtitle: fmt.Sprintf("run=%s steps=%d", label, len(deltas))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "max delta", Type: "log"}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("max_delta", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
