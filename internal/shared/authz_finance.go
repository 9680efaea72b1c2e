package shared

// Ledger capabilities checked by the capability gate.
const (
	CapJournalView  = "ledger.journal.view"
	CapJournalPost  = "ledger.journal.post"
	CapJournalVoid  = "ledger.journal.void"
	CapPeriodManage = "ledger.period.manage"
	CapTaxView      = "ledger.tax.view"
	CapVATFinalize  = "ledger.vat.finalize"
	CapChartManage  = "ledger.chart.manage"
)

// LedgerScopes lists all capabilities related to the ledger.
func LedgerScopes() []string {
	return []string{
		CapJournalView,
		CapJournalPost,
		CapJournalVoid,
		CapPeriodManage,
		CapTaxView,
		CapVATFinalize,
		CapChartManage,
	}
}
