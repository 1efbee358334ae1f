package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"foodval-go/internal/metrics"
	"foodval-go/internal/runner"
	"foodval-go/internal/views"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// CSPNonceContextKey is where the router leaves the per-request script nonce.
const CSPNonceContextKey = "csp_nonce"

type ResultsHandler struct {
	log *zap.Logger
}

func NewResultsHandler(log *zap.Logger) *ResultsHandler {
	return &ResultsHandler{log: log}
}

// DownloadCSV sends the header line and every row recorded so far.
func (h *ResultsHandler) DownloadCSV(c *gin.Context) {
	run := c.MustGet(RunContextKey).(*runner.Run)
	data, err := run.CSV(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to export session data", zap.String("session_id", run.Session.ID), zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to load session data")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, run.Session.ID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// ShowResults renders the summary charts for the current session.
func (h *ResultsHandler) ShowResults(c *gin.Context) {
	run := c.MustGet(RunContextKey).(*runner.Run)
	rows, err := run.Rows(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to read session rows", zap.String("session_id", run.Session.ID), zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to load results")
		return
	}
	s := metrics.Summarize(rows)

	ratesJSON, _ := json.Marshal(generateBarChart("Memory and Attention", "%", s.Rates()).JSON())
	paymentsJSON, _ := json.Marshal(generateBarChart("Willingness to Pay", "$", s.Payments()).JSON())

	nonce := c.GetString(CSPNonceContextKey)
	component := views.ResultsCharts(
		run.Session.Participant(),
		run.Session.ID,
		len(rows),
		[]views.Chart{
			{ID: "rates-chart", Options: string(ratesJSON)},
			{ID: "payments-chart", Options: string(paymentsJSON)},
		},
		nonce,
	)

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := views.Layout("Results").Render(templ.WithChildren(c.Request.Context(), component), c.Writer); err != nil {
		h.log.Error("Failed to render results", zap.Error(err))
	}
}

// generateBarChart plots every calculated metric; uncalculated ones are left out.
func generateBarChart(title, unit string, ms []metrics.Metric) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: unit,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	labels := make([]string, 0, len(ms))
	items := make([]opts.BarData, 0, len(ms))
	for _, m := range ms {
		if !m.Result.Calculated {
			continue
		}
		labels = append(labels, m.Label)
		items = append(items, opts.BarData{Name: m.Label, Value: m.Result.Value})
	}

	bar.SetXAxis(labels).AddSeries(title, items)
	return bar
}
