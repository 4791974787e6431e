package model

// CustomerValue is one row of the CLV ranking.
type CustomerValue struct {
	CustomerID int64   `json:"customer_id"`
	CLV        float64 `json:"clv"`
}

// CustomerChurnTiming is one row of the survival ranking.
type CustomerChurnTiming struct {
	CustomerID           int64   `json:"customer_id"`
	DaysRemainingToChurn float64 `json:"days_remaining_to_churn"`
}

// CustomerChurnRisk is one row of the classification ranking.
type CustomerChurnRisk struct {
	CustomerID int64   `json:"customer_id"`
	ChurnProb  float64 `json:"churn_prob"`
}

// UpliftSummary is the result of the uplift tool.
type UpliftSummary struct {
	NumCustomersPositiveUplift int `json:"num_customers_positive_uplift"`
}

// ChurnFactor is one directed edge into churn.
type ChurnFactor struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// ChurnFactors is the result of the causal discovery tool.
type ChurnFactors struct {
	ChurnFactors []ChurnFactor `json:"churn_factors"`
}

// QueryResult is the result of a read-only SQL statement.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}
