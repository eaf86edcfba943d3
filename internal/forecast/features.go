package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// FeatureFrame is a TimeSeries augmented with derived feature columns.
// Undefined cells (rows without enough history for a lag or rolling window)
// hold NaN until Finalize drops them; they are never imputed.
type FeatureFrame struct {
	Dates  []time.Time
	Target []float64

	// Columns preserves insertion order so the feature matrix layout is
	// deterministic across runs.
	Columns []string
	Data    map[string][]float64
}

// NewFeatureFrame seeds a frame from a series with no derived columns yet.
func NewFeatureFrame(series TimeSeries) *FeatureFrame {
	f := &FeatureFrame{
		Dates:  make([]time.Time, len(series)),
		Target: make([]float64, len(series)),
		Data:   make(map[string][]float64),
	}
	for i, p := range series {
		f.Dates[i] = p.Date
		f.Target[i] = p.Value
	}
	return f
}

// Len returns the row count.
func (f *FeatureFrame) Len() int { return len(f.Dates) }

func (f *FeatureFrame) addColumn(name string, values []float64) {
	if _, ok := f.Data[name]; !ok {
		f.Columns = append(f.Columns, name)
	}
	f.Data[name] = values
}

// AddTimeFeatures appends the calendar columns: day_of_week (Monday=0),
// day_of_month, month, quarter and is_weekend.
func (f *FeatureFrame) AddTimeFeatures() *FeatureFrame {
	n := f.Len()
	dow := make([]float64, n)
	dom := make([]float64, n)
	month := make([]float64, n)
	quarter := make([]float64, n)
	weekend := make([]float64, n)
	for i, d := range f.Dates {
		c := CalendarFeatures(d)
		dow[i] = c.DayOfWeek
		dom[i] = c.DayOfMonth
		month[i] = c.Month
		quarter[i] = c.Quarter
		weekend[i] = c.IsWeekend
	}
	f.addColumn("day_of_week", dow)
	f.addColumn("day_of_month", dom)
	f.addColumn("month", month)
	f.addColumn("quarter", quarter)
	f.addColumn("is_weekend", weekend)
	return f
}

// Calendar holds the calendar feature values for a single date.
type Calendar struct {
	DayOfWeek  float64
	DayOfMonth float64
	Month      float64
	Quarter    float64
	IsWeekend  float64
}

// CalendarFeatures derives the calendar columns for one date. Day of week is
// Monday-based (Monday=0 .. Sunday=6) and the weekend flag covers Saturday
// and Sunday.
func CalendarFeatures(d time.Time) Calendar {
	dow := (int(d.Weekday()) + 6) % 7
	m := int(d.Month())
	c := Calendar{
		DayOfWeek:  float64(dow),
		DayOfMonth: float64(d.Day()),
		Month:      float64(m),
		Quarter:    float64((m-1)/3 + 1),
	}
	if dow >= 5 {
		c.IsWeekend = 1
	}
	return c
}

// AddLagFeatures appends one column per lag: lag_k holds the target value k
// rows earlier; the first k rows are NaN.
func (f *FeatureFrame) AddLagFeatures(lags []int) *FeatureFrame {
	sorted := append([]int(nil), lags...)
	sort.Ints(sorted)
	n := f.Len()
	for _, lag := range sorted {
		col := make([]float64, n)
		for i := range col {
			if i < lag {
				col[i] = math.NaN()
			} else {
				col[i] = f.Target[i-lag]
			}
		}
		f.addColumn(fmt.Sprintf("lag_%d", lag), col)
	}
	return f
}

// AddRollingFeatures appends trailing mean and std columns per window,
// inclusive of the current row. Rows before the window fills are NaN.
func (f *FeatureFrame) AddRollingFeatures(windows []int) *FeatureFrame {
	sorted := append([]int(nil), windows...)
	sort.Ints(sorted)
	n := f.Len()
	for _, w := range sorted {
		means := make([]float64, n)
		stds := make([]float64, n)
		for i := range means {
			if i+1 < w {
				means[i] = math.NaN()
				stds[i] = math.NaN()
				continue
			}
			window := f.Target[i+1-w : i+1]
			m, sd := meanStd(window)
			means[i] = m
			stds[i] = sd
		}
		f.addColumn(fmt.Sprintf("rolling_mean_%d", w), means)
		f.addColumn(fmt.Sprintf("rolling_std_%d", w), stds)
	}
	return f
}

// Finalize drops every row containing an undefined feature value and
// enforces the minimum-training threshold on what remains.
func (f *FeatureFrame) Finalize(minRows int) (*FeatureFrame, error) {
	keep := make([]bool, f.Len())
	kept := 0
	for i := range keep {
		keep[i] = true
		for _, name := range f.Columns {
			if math.IsNaN(f.Data[name][i]) {
				keep[i] = false
				break
			}
		}
		if keep[i] {
			kept++
		}
	}

	out := &FeatureFrame{
		Dates:   make([]time.Time, 0, kept),
		Target:  make([]float64, 0, kept),
		Columns: append([]string(nil), f.Columns...),
		Data:    make(map[string][]float64, len(f.Columns)),
	}
	for _, name := range f.Columns {
		out.Data[name] = make([]float64, 0, kept)
	}
	for i, ok := range keep {
		if !ok {
			continue
		}
		out.Dates = append(out.Dates, f.Dates[i])
		out.Target = append(out.Target, f.Target[i])
		for _, name := range f.Columns {
			out.Data[name] = append(out.Data[name], f.Data[name][i])
		}
	}

	if out.Len() < minRows {
		return nil, fmt.Errorf("%w: %d usable rows after feature engineering, need %d",
			ErrInsufficientData, out.Len(), minRows)
	}
	return out, nil
}

// Matrix returns the feature values as a row-major matrix in column order.
func (f *FeatureFrame) Matrix() [][]float64 {
	rows := make([][]float64, f.Len())
	for i := range rows {
		row := make([]float64, len(f.Columns))
		for j, name := range f.Columns {
			row[j] = f.Data[name][i]
		}
		rows[i] = row
	}
	return rows
}
