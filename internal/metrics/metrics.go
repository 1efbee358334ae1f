// Package metrics summarizes a participant's recorded rows for the results page.
package metrics

import (
	"strconv"

	"foodval-go/internal/experiment"
	"foodval-go/internal/models"
)

type MetricResult struct {
	Value      float64 `json:"value"`
	Calculated bool    `json:"calculated"`
	SampleSize int     `json:"sampleSize,omitempty"`
}

// Metric is a labelled result, in display order.
type Metric struct {
	Key    string       `json:"key"`
	Label  string       `json:"label"`
	Unit   string       `json:"unit"`
	Result MetricResult `json:"result"`
}

// Summary holds the per-session measures.
type Summary struct {
	AttentionAccuracy MetricResult
	HitRate           MetricResult
	FalseAlarmRate    MetricResult
	MeanPaymentOld    MetricResult
	MeanPaymentNew    MetricResult
	MeanConfidence    MetricResult
	MeanDwellSeconds  MetricResult
	// HitRateBySize splits the hit rate by the size an old image had in Phase 1.
	HitRateBySize map[models.Size]MetricResult
}

// mean accumulates values and reports their average once any were added.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) result() MetricResult {
	if m.n == 0 {
		return MetricResult{}
	}
	return MetricResult{Value: m.sum / float64(m.n), Calculated: true, SampleSize: m.n}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Summarize computes the Summary from rows. Rows with unparsable numbers are
// skipped for the affected measure only.
func Summarize(rows []experiment.Row) Summary {
	var (
		attention, hits, falseAlarms mean
		paymentOld, paymentNew       mean
		confidence, dwell            mean
	)
	bySize := map[models.Size]*mean{models.SizeLarge: {}, models.SizeSmall: {}}

	for _, row := range rows {
		switch row.EntryType {
		case experiment.EntryAttentionCheck:
			attention.add(boolValue(row.AttentionCorrect == "true"))

		case experiment.EntryPhase1Image:
			if v, err := strconv.ParseFloat(row.ResponseTime, 64); err == nil {
				dwell.add(v)
			}

		case experiment.EntryPhase2Response:
			saidYes := boolValue(row.MemoryResponse == experiment.MemoryYes)
			payment, payErr := strconv.ParseFloat(row.PaymentResponse, 64)

			switch row.ImageType {
			case experiment.ImageTypeOld:
				hits.add(saidYes)
				if m, ok := bySize[models.Size(row.Phase1Size)]; ok {
					m.add(saidYes)
				}
				if payErr == nil {
					paymentOld.add(payment)
				}
			case experiment.ImageTypeNew:
				falseAlarms.add(saidYes)
				if payErr == nil {
					paymentNew.add(payment)
				}
			}

			if v, err := strconv.ParseFloat(row.Confidence, 64); err == nil {
				confidence.add(v)
			}
		}
	}

	s := Summary{
		AttentionAccuracy: attention.result(),
		HitRate:           hits.result(),
		FalseAlarmRate:    falseAlarms.result(),
		MeanPaymentOld:    paymentOld.result(),
		MeanPaymentNew:    paymentNew.result(),
		MeanConfidence:    confidence.result(),
		MeanDwellSeconds:  dwell.result(),
		HitRateBySize:     make(map[models.Size]MetricResult, len(bySize)),
	}
	for size, m := range bySize {
		s.HitRateBySize[size] = m.result()
	}
	return s
}

// Rates lists the proportion measures as percentages.
func (s Summary) Rates() []Metric {
	return []Metric{
		percent("attention_accuracy", "Attention Accuracy", s.AttentionAccuracy),
		percent("hit_rate", "Hit Rate (old images)", s.HitRate),
		percent("hit_rate_large", "Hit Rate (large in Phase 1)", s.HitRateBySize[models.SizeLarge]),
		percent("hit_rate_small", "Hit Rate (small in Phase 1)", s.HitRateBySize[models.SizeSmall]),
		percent("false_alarm_rate", "False Alarm Rate (new images)", s.FalseAlarmRate),
		{Key: "mean_confidence", Label: "Mean Confidence", Unit: "%", Result: s.MeanConfidence},
	}
}

// Payments lists the mean willingness to pay, in dollars.
func (s Summary) Payments() []Metric {
	return []Metric{
		{Key: "mean_payment_old", Label: "Old Images", Unit: "$", Result: s.MeanPaymentOld},
		{Key: "mean_payment_new", Label: "New Images", Unit: "$", Result: s.MeanPaymentNew},
	}
}

func percent(key, label string, r MetricResult) Metric {
	if r.Calculated {
		r.Value *= 100
	}
	return Metric{Key: key, Label: label, Unit: "%", Result: r}
}
