// Package report summarises a day's housekeeping work per staff member.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"housekeeping-backend/config"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/parse"
	"housekeeping-backend/internal/worklist"
)

// SheetName is the worksheet the export writes.
const SheetName = "Workload"

// Rates is the piece rate paid per finished task.
type Rates struct {
	Checkout decimal.Decimal `json:"checkout"`
	Stayover decimal.Decimal `json:"stayover"`
	Dirty    decimal.Decimal `json:"dirty"`
}

// RatesFrom converts configured rates.
func RatesFrom(c config.RatesConfig) Rates {
	return Rates{
		Checkout: decimal.NewFromInt(c.Checkout),
		Stayover: decimal.NewFromInt(c.Stayover),
		Dirty:    decimal.NewFromInt(c.Dirty),
	}
}

func (r Rates) of(t model.TaskType) decimal.Decimal {
	switch t {
	case model.TaskCheckout:
		return r.Checkout
	case model.TaskStayover:
		return r.Stayover
	case model.TaskDirty:
		return r.Dirty
	}
	return decimal.Zero
}

// Row is one staff member's day.
type Row struct {
	Staff    string          `json:"staff"`
	Points   int             `json:"points"`
	Assigned int             `json:"assigned"`
	Done     int             `json:"done"`
	Checkout int             `json:"checkout_done"`
	Stayover int             `json:"stayover_done"`
	Dirty    int             `json:"dirty_done"`
	Earnings decimal.Decimal `json:"earnings"`
}

// Workload is the report for one day.
type Workload struct {
	Date          parse.Day       `json:"date"`
	Rows          []Row           `json:"rows"`
	TotalPoints   int             `json:"total_points"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

// Build sums the assigned entries of a day. Every active housekeeper gets a
// row, busy or not. Only finished tasks earn.
func Build(date parse.Day, entries []worklist.Entry, staff []model.Staff, rates Rates) Workload {
	rows := map[string]*Row{}
	row := func(name string) *Row {
		r, ok := rows[name]
		if !ok {
			r = &Row{Staff: name, Earnings: decimal.Zero}
			rows[name] = r
		}
		return r
	}
	for _, s := range staff {
		if s.IsHousekeeper() {
			row(s.Name)
		}
	}

	for _, e := range entries {
		name := e.Task.AssigneeName()
		if e.IsInquiry() || name == "" {
			continue
		}
		r := row(name)
		r.Assigned++
		r.Points += e.Task.Points
		if e.Task.Status != model.TaskDone {
			continue
		}
		r.Done++
		switch e.Task.TaskType {
		case model.TaskCheckout:
			r.Checkout++
		case model.TaskStayover:
			r.Stayover++
		case model.TaskDirty:
			r.Dirty++
		}
		r.Earnings = r.Earnings.Add(rates.of(e.Task.TaskType))
	}

	w := Workload{Date: date, TotalEarnings: decimal.Zero}
	for _, r := range rows {
		w.Rows = append(w.Rows, *r)
		w.TotalPoints += r.Points
		w.TotalEarnings = w.TotalEarnings.Add(r.Earnings)
	}
	sort.Slice(w.Rows, func(i, j int) bool {
		if w.Rows[i].Points != w.Rows[j].Points {
			return w.Rows[i].Points > w.Rows[j].Points
		}
		return w.Rows[i].Staff < w.Rows[j].Staff
	})
	return w
}

var headers = []string{"Staff", "Points", "Assigned", "Done", "Checkout", "Stayover", "Dirty", "Earnings"}

// WriteXLSX writes the report as a spreadsheet.
func (w Workload) WriteXLSX(out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	f.SetCellValue(SheetName, "A1", fmt.Sprintf("Workload %s", w.Date))
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(SheetName, cell, header)
	}

	for i, r := range w.Rows {
		line := i + 3
		f.SetCellValue(SheetName, fmt.Sprintf("A%d", line), r.Staff)
		f.SetCellValue(SheetName, fmt.Sprintf("B%d", line), r.Points)
		f.SetCellValue(SheetName, fmt.Sprintf("C%d", line), r.Assigned)
		f.SetCellValue(SheetName, fmt.Sprintf("D%d", line), r.Done)
		f.SetCellValue(SheetName, fmt.Sprintf("E%d", line), r.Checkout)
		f.SetCellValue(SheetName, fmt.Sprintf("F%d", line), r.Stayover)
		f.SetCellValue(SheetName, fmt.Sprintf("G%d", line), r.Dirty)
		f.SetCellValue(SheetName, fmt.Sprintf("H%d", line), r.Earnings.InexactFloat64())
	}

	total := len(w.Rows) + 3
	f.SetCellValue(SheetName, fmt.Sprintf("A%d", total), "Total")
	f.SetCellValue(SheetName, fmt.Sprintf("B%d", total), w.TotalPoints)
	f.SetCellValue(SheetName, fmt.Sprintf("H%d", total), w.TotalEarnings.InexactFloat64())

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
