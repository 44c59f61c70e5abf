// Package export renders orders as spreadsheets.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/MJ-02/BillSplitter/internal/models"
)

const (
	SplitsSheet = "Splits"
	ItemsSheet  = "Items"
)

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

// OrderWorkbook builds a workbook with one row per split and one row per
// item. users resolves user IDs to names; unknown IDs are shown as is.
func OrderWorkbook(order *models.Order, splits []*models.Split, users map[string]*models.User) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	if err := writeSplits(f, order, splits, users, headerStyle, moneyStyle); err != nil {
		return nil, fmt.Errorf("failed to create splits sheet: %w", err)
	}
	if err := writeItems(f, order, headerStyle, moneyStyle); err != nil {
		return nil, fmt.Errorf("failed to create items sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(SplitsSheet); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// Filename suggests a download name for the order's workbook.
func Filename(order *models.Order) string {
	name := unsafeFilename.ReplaceAllString(strings.TrimSpace(order.Restaurant), "_")
	if name == "" {
		name = "order"
	}
	return fmt.Sprintf("%s_%s.xlsx", name, order.Date.Format("2006-01-02"))
}

func writeSplits(f *excelize.File, order *models.Order, splits []*models.Split, users map[string]*models.User, headerStyle, moneyStyle int) error {
	if _, err := f.NewSheet(SplitsSheet); err != nil {
		return err
	}

	itemNames := make(map[string]string, len(order.Items))
	for _, item := range order.Items {
		itemNames[item.ID] = item.Name
	}

	headers := []any{"Person", "Items", "Amount Owed", "Paid", "Reminder Sent"}
	if err := writeRow(f, SplitsSheet, 1, headers); err != nil {
		return err
	}
	if err := styleRow(f, SplitsSheet, 1, len(headers), headerStyle); err != nil {
		return err
	}

	total := decimal.Zero
	for i, split := range splits {
		name := split.UserID
		if u, ok := users[split.UserID]; ok {
			name = u.Name
		}
		var items []string
		for _, id := range split.ItemIDs {
			if n, ok := itemNames[id]; ok {
				items = append(items, n)
			}
		}
		row := []any{name, strings.Join(items, ", "), split.AmountOwed.InexactFloat64(), yesNo(split.Paid), yesNo(split.ReminderSent)}
		if err := writeRow(f, SplitsSheet, i+2, row); err != nil {
			return err
		}
		total = total.Add(split.AmountOwed)
	}

	last := len(splits) + 2
	if err := writeRow(f, SplitsSheet, last, []any{"Total", "", total.InexactFloat64()}); err != nil {
		return err
	}
	if err := f.SetCellStyle(SplitsSheet, "C2", fmt.Sprintf("C%d", last), moneyStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(SplitsSheet, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(SplitsSheet, "B", "B", 40); err != nil {
		return err
	}
	return f.SetColWidth(SplitsSheet, "C", "E", 15)
}

func writeItems(f *excelize.File, order *models.Order, headerStyle, moneyStyle int) error {
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return err
	}

	headers := []any{"Item", "Quantity", "Unit Price", "Line Total"}
	if err := writeRow(f, ItemsSheet, 1, headers); err != nil {
		return err
	}
	if err := styleRow(f, ItemsSheet, 1, len(headers), headerStyle); err != nil {
		return err
	}

	for i, item := range order.Items {
		row := []any{item.Name, item.Quantity, item.Price.InexactFloat64(), item.LineTotal().InexactFloat64()}
		if err := writeRow(f, ItemsSheet, i+2, row); err != nil {
			return err
		}
	}

	// Order-level charges below the items
	r := len(order.Items) + 3
	charges := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Subtotal", order.Subtotal},
		{"Tax", order.Tax},
		{"Delivery Fee", order.DeliveryFee},
		{"Tip", order.Tip},
		{"Discount", order.Discount.Neg()},
		{"Total", order.Total},
	}
	for i, c := range charges {
		if err := writeRow(f, ItemsSheet, r+i, []any{c.label, "", "", c.amount.InexactFloat64()}); err != nil {
			return err
		}
	}

	if err := f.SetCellStyle(ItemsSheet, "C2", fmt.Sprintf("D%d", r+len(charges)-1), moneyStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(ItemsSheet, "A", "A", 30); err != nil {
		return err
	}
	return f.SetColWidth(ItemsSheet, "B", "D", 12)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleRow(f *excelize.File, sheet string, row, cols, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
