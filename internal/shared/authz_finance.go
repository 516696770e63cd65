package shared

// Ledger permissions checked before requests reach the accounting core.
const (
	PermFinanceGLView      = "finance.gl.view"
	PermFinanceGLEdit      = "finance.gl.edit"
	PermFinanceGLPost      = "finance.gl.post"
	PermFinanceGLReverse   = "finance.gl.reverse"
	PermFinancePeriodClose = "finance.period.close"
	PermFinanceYearManage  = "finance.year.manage"
	PermFinanceYearClose   = "finance.year.close"
	PermFinanceSequence    = "finance.sequence.issue"
)

// FinanceScopes lists all permissions related to the finance module.
func FinanceScopes() []string {
	return []string{
		PermFinanceGLView,
		PermFinanceGLEdit,
		PermFinanceGLPost,
		PermFinanceGLReverse,
		PermFinancePeriodClose,
		PermFinanceYearManage,
		PermFinanceYearClose,
		PermFinanceSequence,
	}
}
