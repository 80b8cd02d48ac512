package analyst

import (
	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/runmodel"
)

// ChecklistQuestion pairs a section heading with its fixed question text.
type ChecklistQuestion struct {
	SectionType runmodel.SectionType
	Question    string
}

// Checklist is the fixed analyst question set, asked in this order on every
// run so runs stay comparable across models.
var Checklist = []ChecklistQuestion{
	{
		SectionType: runmodel.SectionRevenueDrivers,
		Question:    "What are the main revenue drivers for this company? Identify the key products, services, or business segments that generate the most revenue.",
	},
	{
		SectionType: runmodel.SectionKeyRisks,
		Question:    "What are the key risks mentioned in this document? Include both operational and financial risks.",
	},
	{
		SectionType: runmodel.SectionUnitEconomics,
		Question:    "What are the unit economics and margins? Provide specific numbers for gross margin, operating margin, and net margin if available.",
	},
	{
		SectionType: runmodel.SectionInvestmentThesis,
		Question:    "Provide a 3-bullet investment thesis (bullish or bearish) based on the information in this document. Be concise and specific.",
	},
	{
		SectionType: runmodel.SectionFinancialTrends,
		Question:    "What are the notable financial trends compared to the previous year? Highlight significant changes in revenue, expenses, or profitability.",
	},
}

// ResolveModel maps a request's model key onto a provider model identifier.
// Unknown keys fall back to baseline, the class never drives any other
// branching.
func ResolveModel(key string) (runmodel.ModelClass, string) {
	switch runmodel.ModelClass(key) {
	case runmodel.ModelFineTuned:
		return runmodel.ModelFineTuned, config.ResolvedFineTunedModel()
	case runmodel.ModelDistilled:
		return runmodel.ModelDistilled, config.ResolvedDistilledModel()
	default:
		return runmodel.ModelBaseline, config.ResolvedBaselineModel()
	}
}
