package store

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/Chative-analytics/server/internal/analytics"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

// SeedConfig controls the synthetic bank dataset.
type SeedConfig struct {
	Customers int    `envconfig:"SEED_CUSTOMERS" default:"200"`
	Seed      uint64 `envconfig:"SEED_RANDOM" default:"42"`
}

// Dataset is one generated snapshot: raw events plus the feature table rows
// keyed by CustomerColumns.
type Dataset struct {
	Transactions []Transaction
	Customers    []map[string]float64
	Snapshot     time.Time
}

var (
	seedStart    = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	seedCutoff   = time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	genders      = []string{"male", "female"}
	educations   = []string{"high_school", "bachelor", "master", "phd"}
	maritals     = []string{"single", "married", "divorced"}
	professions  = []string{"worker", "manager", "executive"}
	segments     = []string{"regular", "vip", "new"}
	tenureLabels = []string{"<6m", "6-12m", "1-2y", ">2y"}
)

type seedCustomer struct {
	id           int64
	signup       time.Time
	age, income  float64
	household    float64
	gender       string
	education    string
	marital      string
	profession   string
	segment      string
	promotion    float64
	transactions []Transaction
}

// Generate builds a deterministic dataset for cfg.Seed. Customers whose every
// purchase falls after the cutoff are absent from the feature table.
func Generate(cfg SeedConfig) (*Dataset, error) {
	if cfg.Customers <= 0 {
		return nil, fmt.Errorf("%w: customers must be positive", errx.ErrInvalidInput)
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	custs := make([]*seedCustomer, cfg.Customers)
	for i := range custs {
		custs[i] = &seedCustomer{
			id:         int64(i + 1),
			signup:     seedStart.AddDate(0, 0, rng.IntN(365)),
			age:        float64(18 + rng.IntN(52)),
			income:     math.Trunc(50000 + 15000*rng.NormFloat64()),
			household:  float64(1 + rng.IntN(5)),
			gender:     genders[rng.IntN(len(genders))],
			education:  educations[rng.IntN(len(educations))],
			marital:    maritals[rng.IntN(len(maritals))],
			profession: professions[rng.IntN(len(professions))],
			segment:    segments[rng.IntN(len(segments))],
		}
	}

	ds := &Dataset{}
	for _, c := range custs {
		n := poisson(rng, 5)
		for j := 0; j < n; j++ {
			tx := Transaction{
				CustomerID: c.id,
				TxDate:     c.signup.AddDate(0, 0, rng.IntN(730)),
				Amount:     50*(rng.ExpFloat64()+rng.ExpFloat64()) + 5,
			}
			if tx.TxDate.After(seedCutoff) {
				continue
			}
			c.transactions = append(c.transactions, tx)
			ds.Transactions = append(ds.Transactions, tx)
		}
	}
	if len(ds.Transactions) == 0 {
		return nil, fmt.Errorf("%w: generator produced no transactions", errx.ErrInsufficientData)
	}
	for _, tx := range ds.Transactions {
		if tx.TxDate.After(ds.Snapshot) {
			ds.Snapshot = tx.TxDate
		}
	}

	active := make([]*seedCustomer, 0, len(custs))
	for _, c := range custs {
		if len(c.transactions) > 0 {
			sort.Slice(c.transactions, func(a, b int) bool { return c.transactions[a].TxDate.Before(c.transactions[b].TxDate) })
			active = append(active, c)
		}
	}

	monetary := make([]float64, len(active))
	for i, c := range active {
		row := ds.rfm(c)
		monetary[i] = row["monetary_value"]
		c.promotion = bernoulli(rng, 0.5)
		row["promotion_offer"] = c.promotion

		daysSinceLast := days(ds.Snapshot.Sub(c.transactions[len(c.transactions)-1].TxDate))
		row["implicit_churn"] = boolf(daysSinceLast > 90)

		demo := clamp(0.1+0.02*(c.age-30)-0.00005*(c.income-40000), 0, 1)
		final := demo
		if c.promotion == 1 {
			final *= 0.7
		}
		row["demographic_churn_prob"] = demo
		row["final_churn_prob"] = final
		row["churned"] = bernoulli(rng, final)

		first, last := c.transactions[0].TxDate, c.transactions[len(c.transactions)-1].TxDate
		if row["churned"] == 1 {
			row["duration"] = days(last.Sub(first))
		} else {
			row["duration"] = days(ds.Snapshot.Sub(first))
		}
		ds.behaviour(c, row)
		ds.Customers = append(ds.Customers, row)
	}

	med := median(monetary)
	for _, row := range ds.Customers {
		row["high_value_flag"] = boolf(row["monetary_value"] > med)
	}

	logx.Debug().Int("customers", len(ds.Customers)).Int("transactions", len(ds.Transactions)).
		Time("snapshot", ds.Snapshot).Msg("synthetic dataset generated")
	return ds, nil
}

func (ds *Dataset) rfm(c *seedCustomer) map[string]float64 {
	first, last := c.transactions[0].TxDate, c.transactions[len(c.transactions)-1].TxDate
	var sum float64
	for _, tx := range c.transactions {
		sum += tx.Amount
	}
	row := map[string]float64{
		"customer_id":    float64(c.id),
		"recency":        days(last.Sub(first)),
		"T":              days(ds.Snapshot.Sub(first)),
		"frequency":      math.Max(1, float64(len(c.transactions))),
		"monetary_value": math.Round(sum/float64(len(c.transactions))*100) / 100,
		"age":            c.age,
		"income":         c.income,
		"household_size": c.household,
	}
	oneHot(row, "gender", genders, c.gender)
	oneHot(row, "education_level", educations, c.education)
	oneHot(row, "marital_status", maritals, c.marital)
	oneHot(row, "profession", professions, c.profession)
	oneHot(row, "customer_segment", segments, c.segment)
	return row
}

func (ds *Dataset) behaviour(c *seedCustomer, row map[string]float64) {
	sixMonthsAgo := ds.Snapshot.AddDate(0, -6, 0)
	var recent, before, summer, winter float64
	months := map[string]struct{}{}
	for _, tx := range c.transactions {
		if tx.TxDate.Before(sixMonthsAgo) {
			before++
		} else {
			recent++
		}
		switch tx.TxDate.Month() {
		case time.June, time.July, time.August:
			summer++
		case time.December, time.January, time.February:
			winter++
		}
		months[tx.TxDate.Format("2006-01")] = struct{}{}
	}
	row["purchase_trend"] = 0
	if before > 0 {
		row["purchase_trend"] = recent / before
	}
	row["seasonal_user"] = boolf(summer > winter)
	row["num_active_months"] = float64(len(months))

	if len(c.transactions) > 1 {
		var gaps float64
		for i := 1; i < len(c.transactions); i++ {
			gaps += days(c.transactions[i].TxDate.Sub(c.transactions[i-1].TxDate))
		}
		row["avg_days_between_tx"] = gaps / float64(len(c.transactions)-1)
	} else {
		row["avg_days_between_tx"] = row["T"]
	}

	bucket := tenureBucket(row["T"])
	for _, label := range tenureLabels {
		row["tenure_"+label] = boolf(label == bucket)
	}
}

// tenureBucket assigns T (days) to one of the four tenure groups. T == 0 falls
// into the first group so every row has exactly one bucket.
func tenureBucket(t float64) string {
	switch {
	case t <= 180:
		return "<6m"
	case t <= 365:
		return "6-12m"
	case t <= 730:
		return "1-2y"
	default:
		return ">2y"
	}
}

// oneHot writes indicator columns for every level except the alphabetically
// first one.
func oneHot(row map[string]float64, prefix string, levels []string, value string) {
	sorted := append([]string(nil), levels...)
	sort.Strings(sorted)
	for _, l := range sorted[1:] {
		row[prefix+"_"+l] = boolf(l == value)
	}
}

// Frame converts the generated feature rows into an analytics frame laid out
// like LoadCustomerFrame.
func (ds *Dataset) Frame() (*analytics.Frame, error) {
	features := make([]string, 0, len(CustomerColumns)-1)
	for _, c := range CustomerColumns {
		if c != "customer_id" {
			features = append(features, c)
		}
	}
	ids := make([]int64, len(ds.Customers))
	rows := make([][]float64, len(ds.Customers))
	for i, row := range ds.Customers {
		ids[i] = int64(row["customer_id"])
		rows[i] = make([]float64, len(features))
		for j, c := range features {
			rows[i][j] = row[c]
		}
	}
	return analytics.NewFrame(features, ids, rows)
}

// ReplaceDataset swaps both tables' contents for ds inside one transaction.
func (s *Store) ReplaceDataset(ctx context.Context, ds *Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapSQLite(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{TableTransactions, TableCustomers} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errx.WrapSQLite(fmt.Errorf("clear %s: %w", table, err))
		}
	}

	txStmt, err := tx.PrepareContext(ctx, "INSERT INTO raw_transactions (customer_id, tx_date, amount) VALUES (?, ?, ?)")
	if err != nil {
		return errx.WrapSQLite(err)
	}
	defer txStmt.Close()
	for _, t := range ds.Transactions {
		if _, err := txStmt.ExecContext(ctx, t.CustomerID, t.TxDate.Format("2006-01-02 15:04:05"), t.Amount); err != nil {
			return errx.WrapSQLite(fmt.Errorf("insert transaction: %w", err))
		}
	}

	quoted := make([]string, len(CustomerColumns))
	for i, c := range CustomerColumns {
		quoted[i] = quoteIdent(c)
	}
	custStmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO customer_data (%s) VALUES (%s)",
		strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(CustomerColumns)), ", ")))
	if err != nil {
		return errx.WrapSQLite(err)
	}
	defer custStmt.Close()
	for _, row := range ds.Customers {
		args := make([]any, len(CustomerColumns))
		for i, c := range CustomerColumns {
			v, ok := row[c]
			if !ok {
				return fmt.Errorf("%w: customer row missing column %q", errx.ErrInvalidInput, c)
			}
			if c == "customer_id" {
				args[i] = int64(v)
			} else {
				args[i] = v
			}
		}
		if _, err := custStmt.ExecContext(ctx, args...); err != nil {
			return errx.WrapSQLite(fmt.Errorf("insert customer: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errx.WrapSQLite(err)
	}
	logx.Info().Int("customers", len(ds.Customers)).Int("transactions", len(ds.Transactions)).Msg("dataset stored")
	return nil
}

func poisson(rng *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func bernoulli(rng *rand.Rand, p float64) float64 {
	return boolf(rng.Float64() < p)
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func days(d time.Duration) float64 {
	return math.Floor(d.Hours() / 24)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
