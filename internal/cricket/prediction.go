package cricket

// Category identifies a predictable ball outcome.
type Category string

// Prediction categories.
const (
	CategoryTwoRuns Category = "2_runs"
	CategoryFour    Category = "4_runs"
	CategorySix     Category = "6_runs"
	CategoryWicket  Category = "wicket"
	CategoryDotBall Category = "dot_ball"
)

// Multiplier is an exact payout ratio Num/Den.
type Multiplier struct {
	Num int64
	Den int64
}

// Apply returns floor(stake * m) for a non-negative stake.
func (m Multiplier) Apply(stake int64) int64 {
	if stake <= 0 || m.Den <= 0 {
		return 0
	}
	return stake * m.Num / m.Den
}

// Float returns the multiplier for display.
func (m Multiplier) Float() float64 {
	return float64(m.Num) / float64(m.Den)
}

// PredictionType describes one row of the prediction table.
type PredictionType struct {
	Category   Category
	Label      string
	Multiplier Multiplier
	MinStake   int64
	MaxStake   int64
}

// AllowsStake reports whether stake lies within the type's bounds.
func (p PredictionType) AllowsStake(stake int64) bool {
	return stake >= p.MinStake && stake <= p.MaxStake
}

// predictionTypes is the static prediction table, in display order.
var predictionTypes = []PredictionType{
	{CategoryTwoRuns, "2 Runs", Multiplier{3, 2}, 10, 100},
	{CategoryFour, "Boundary (4)", Multiplier{2, 1}, 20, 200},
	{CategorySix, "Six (6)", Multiplier{3, 1}, 30, 300},
	{CategoryWicket, "Wicket", Multiplier{5, 1}, 50, 500},
	{CategoryDotBall, "Dot Ball", Multiplier{9, 5}, 10, 150},
}

var predictionIndex = func() map[Category]PredictionType {
	m := make(map[Category]PredictionType, len(predictionTypes))
	for _, p := range predictionTypes {
		m[p.Category] = p
	}
	return m
}()

// Lookup returns the prediction type for a category.
func Lookup(c Category) (PredictionType, bool) {
	p, ok := predictionIndex[c]
	return p, ok
}

// Categories returns all prediction types in display order.
func Categories() []PredictionType {
	out := make([]PredictionType, len(predictionTypes))
	copy(out, predictionTypes)
	return out
}

// Settles reports whether a prediction in category c wins against outcome o.
// Unknown categories never win.
func Settles(c Category, o Outcome) bool {
	if o == nil {
		return false
	}
	switch c {
	case CategoryWicket:
		return o.IsWicket()
	case CategoryDotBall:
		return !o.IsWicket() && o.Runs() == 0
	case CategoryTwoRuns:
		return !o.IsWicket() && o.Runs() == 2
	case CategoryFour:
		return !o.IsWicket() && o.Runs() == 4
	case CategorySix:
		return !o.IsWicket() && o.Runs() == 6
	default:
		return false
	}
}

// Winnings returns floor(stake * multiplier) for category c, or 0 for an
// unknown category.
func Winnings(c Category, stake int64) int64 {
	p, ok := Lookup(c)
	if !ok {
		return 0
	}
	return p.Multiplier.Apply(stake)
}
