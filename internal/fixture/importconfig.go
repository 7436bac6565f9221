// Package fixture loads the import config that drives an end-to-end run
package fixture

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"redads-automation/internal/tabular"
)

// Import config columns, in file order
const (
	ColKey       = "Key"
	ColAccountID = "Account ID"
	ColFilter    = "Filter"
	ColName      = "Name"
	ColStartDate = "Start Date"
	ColEndDate   = "End Date"
	ColAPIFields = "API Fields"
)

// ColVendorKey is the vendor matrix column holding API_<Key>_<Name> keys
const ColVendorKey = "Vendor Key"

// ImportConfigColumns is the expected header of an import config
var ImportConfigColumns = []string{
	ColKey, ColAccountID, ColFilter, ColName, ColStartDate, ColEndDate, ColAPIFields,
}

// LoadImportConfig reads an import config from an .xlsx workbook (first
// sheet) or a .csv file
func LoadImportConfig(path string) (*tabular.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path)
	case ".csv":
		return tabular.ReadFile(path)
	default:
		return nil, fmt.Errorf("unsupported import config format: %s", path)
	}
}

func readWorkbook(path string) (*tabular.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return tabular.Empty(), nil
	}

	table := &tabular.Table{Columns: trimCells(rows[0])}
	width := len(table.Columns)
	for _, row := range rows[1:] {
		// GetRows drops trailing empty cells
		if lo.EveryBy(row, func(cell string) bool { return strings.TrimSpace(cell) == "" }) {
			continue
		}
		record := make([]string, width)
		copy(record, row)
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

func trimCells(cells []string) []string {
	return lo.Map(cells, func(cell string, _ int) string { return strings.TrimSpace(cell) })
}

// ValidateImportConfig checks that table has exactly the import config
// columns in order
func ValidateImportConfig(table *tabular.Table) error {
	if slices.Equal(table.Columns, ImportConfigColumns) {
		return nil
	}

	missing, extra := lo.Difference(ImportConfigColumns, table.Columns)
	if len(missing) == 0 && len(extra) == 0 {
		return fmt.Errorf("import config columns out of order: got %v, want %v", table.Columns, ImportConfigColumns)
	}
	return fmt.Errorf("import config columns mismatch: missing %v, unexpected %v", missing, extra)
}

// VendorKeys returns the distinct vendor keys (API_<Key>_<Name>) the import
// config produces
func VendorKeys(table *tabular.Table) ([]string, error) {
	keys, err := table.Column(ColKey)
	if err != nil {
		return nil, err
	}
	names, err := table.Column(ColName)
	if err != nil {
		return nil, err
	}

	vendorKeys := lo.Map(keys, func(key string, i int) string {
		return fmt.Sprintf("API_%s_%s", key, names[i])
	})
	return lo.Uniq(vendorKeys), nil
}

// CheckVendorMatrix reports every vendor key that has no row in the vendor
// matrix, all in one error
func CheckVendorMatrix(matrix *tabular.Table, vendorKeys []string) error {
	present, err := matrix.Column(ColVendorKey)
	if err != nil {
		return err
	}

	missing := lo.Without(vendorKeys, present...)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("vendor keys missing from the vendor matrix:\n\n%s", strings.Join(missing, "\n"))
}
