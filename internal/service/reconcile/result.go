package reconcile

// Outcome names the decision applied to one staged record.
type Outcome string

const (
	OutcomeImported Outcome = "imported"
	OutcomeUpdated  Outcome = "updated"
	OutcomeRestored Outcome = "restored"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeErrored  Outcome = "errored"
)

// Totals are running aggregate counts over a run's items.
type Totals struct {
	Imported int
	Updated  int
	Restored int
	Skipped  int
	Errored  int
}

func (t *Totals) add(o Outcome) {
	switch o {
	case OutcomeImported:
		t.Imported++
	case OutcomeUpdated:
		t.Updated++
	case OutcomeRestored:
		t.Restored++
	case OutcomeSkipped:
		t.Skipped++
	case OutcomeErrored:
		t.Errored++
	}
}

// Processed returns the number of items counted so far.
func (t *Totals) Processed() int {
	return t.Imported + t.Updated + t.Restored + t.Skipped + t.Errored
}

// ItemOutcome describes the decision applied to one staged record.
type ItemOutcome struct {
	UID         string
	DisplayName string
	Outcome     Outcome
	// Reason is set for errored items.
	Reason string
}

// ItemError identifies one failed item with enough context to show the
// user what needs manual attention.
type ItemError struct {
	UID         string
	DisplayName string
	Reason      string
}

// RunResult is the structured summary of one reconciliation run.
// Partial success is representable: counts plus per-item failures
// instead of a bare success flag.
type RunResult struct {
	Totals
	Errors []ItemError
}
