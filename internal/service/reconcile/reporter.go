package reconcile

// ProgressReporter observes a run: once per item with running totals,
// once at completion. Implementations hold no decision logic.
type ProgressReporter interface {
	OnItem(item ItemOutcome, running Totals)
	OnComplete(final Totals)
}

// NopReporter discards all progress notifications.
type NopReporter struct{}

func (NopReporter) OnItem(ItemOutcome, Totals) {}
func (NopReporter) OnComplete(Totals)          {}
