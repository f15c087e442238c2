package engine

import "github.com/Scotty108/Cascadian-sub010/internal/domain"

// QualityThresholds are the empirically tuned gates for grading a wallet's
// data quality. They were calibrated against a reference P&L source across
// very different wallet behaviors, so they stay configurable.
type QualityThresholds struct {
	ExternalSellLowPct    float64 // above this, confidence is low (percent)
	ExternalSellMediumPct float64 // above this, confidence is at most medium
	MappedRatioLow        float64 // below this, confidence is low
	MappedRatioMedium     float64 // below this, confidence is at most medium
	IrregularLowCount     int
	IrregularMediumCount  int
}

// buildQualityMetrics assembles the data-quality metrics from the pipeline's
// counters and diagnostics.
func buildQualityMetrics(ing ingestStats, grp groupStats, led *Ledger) domain.QualityMetrics {
	attempted, clamped := led.SellDiagnostics()

	m := domain.QualityMetrics{
		WashTxCount:        grp.wash,
		BundledTxCount:     grp.bundled,
		TotalEvents:        ing.total,
		MappedEvents:       ing.mapped,
		DuplicateEvents:    ing.duplicates,
		SkippedEvents:      ing.skipped,
		IrregularEvents:    led.IrregularEvents() + ing.skipped,
		ExternalSellValue:  clamped,
		AttemptedSellValue: attempted,
	}

	if ing.total > 0 {
		m.MappedRatio = float64(ing.mapped) / float64(ing.total)
	} else {
		m.MappedRatio = 1
	}
	if attempted > 0 {
		m.ExternalSellPct = 100 * clamped / attempted
	}
	return m
}

// scoreConfidence derives the advisory trust label. The first rule matched
// wins; the label never alters the computed P&L.
func scoreConfidence(m domain.QualityMetrics, t QualityThresholds) domain.Confidence {
	switch {
	case m.ExternalSellPct > t.ExternalSellLowPct,
		m.MappedRatio < t.MappedRatioLow,
		m.IrregularEvents > t.IrregularLowCount:
		return domain.ConfidenceLow
	case m.ExternalSellPct > t.ExternalSellMediumPct,
		m.MappedRatio < t.MappedRatioMedium,
		m.IrregularEvents > t.IrregularMediumCount:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceHigh
	}
}
