package core

import (
	"context"
	"strings"
)

// Contribution is one side of a financial summary produced by a step.
type Contribution struct {
	Amount   float64
	Currency string
}

// SummaryStep is a single attempt in a fallback chain.
type SummaryStep struct {
	Name string
	Run  func(ctx context.Context) (Contribution, error)
}

// StepOutcome records how a step in a chain ended.
type StepOutcome struct {
	Name string
	Err  error
	Used bool
}

// RunSummarySteps runs steps in order and keeps the first success. A chain
// where every step fails contributes zero; it never fails the summary.
func RunSummarySteps(ctx context.Context, steps []SummaryStep) (Contribution, []StepOutcome) {
	outcomes := make([]StepOutcome, 0, len(steps))
	for _, step := range steps {
		if step.Run == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, StepOutcome{Name: step.Name, Err: err})
			break
		}
		contribution, err := step.Run(ctx)
		if err != nil {
			outcomes = append(outcomes, StepOutcome{Name: step.Name, Err: err})
			continue
		}
		outcomes = append(outcomes, StepOutcome{Name: step.Name, Used: true})
		return contribution, outcomes
	}
	return Contribution{}, outcomes
}

// ReportTotals accumulates profit-and-loss rows by label keyword. Expense
// keywords win over revenue ones, so "Cost of Sales" is an expense.
type ReportTotals struct {
	Revenue  float64
	Expenses float64
}

func (t *ReportTotals) Add(label string, value float64) {
	if t == nil {
		return
	}
	switch ClassifyReportLabel(label) {
	case ReportLineExpense:
		t.Expenses += value
	case ReportLineRevenue:
		t.Revenue += value
	}
}

type ReportLine int

const (
	ReportLineOther ReportLine = iota
	ReportLineRevenue
	ReportLineExpense
)

func ClassifyReportLabel(label string) ReportLine {
	switch {
	case IsExpenseLabel(label):
		return ReportLineExpense
	case IsRevenueLabel(label):
		return ReportLineRevenue
	default:
		return ReportLineOther
	}
}

func IsRevenueLabel(label string) bool {
	return containsAny(label, "revenue", "income", "sales")
}

func IsExpenseLabel(label string) bool {
	return containsAny(label, "expense", "cost")
}

func containsAny(label string, keywords ...string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return false
	}
	for _, keyword := range keywords {
		if strings.Contains(label, keyword) {
			return true
		}
	}
	return false
}
