// Package golden compares pipeline output against a recorded results file
package golden

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"redads-automation/internal/tabular"
)

// Spec names the columns used to group and sum both tables
type Spec struct {
	KeyColumn     string
	GroupColumns  []string
	MetricColumns []string
}

// DefaultSpec groups by vendor key, date and the four dictionary dimensions
// and sums impressions, clicks and net cost
func DefaultSpec() Spec {
	return Spec{
		KeyColumn:     "Vendor Key",
		GroupColumns:  []string{"Vendor Key", "Date", "mpCampaign", "mpVendor", "mpCountry/Region", "mpEnvironment"},
		MetricColumns: []string{"Impressions", "Clicks", "Net Cost"},
	}
}

// Mismatch lists the differences found for one vendor key
type Mismatch struct {
	VendorKey   string
	Differences []string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("vendorkey=%s:\n%s", m.VendorKey, strings.Join(m.Differences, "\n"))
}

// Result is the outcome of a comparison
type Result struct {
	VendorKeys []string // vendor keys of the expected table, sorted
	Mismatches []Mismatch
}

// Err returns nil when every vendor key matched, otherwise one error
// describing all mismatches
func (r Result) Err() error {
	if len(r.Mismatches) == 0 {
		return nil
	}
	parts := lo.Map(r.Mismatches, func(m Mismatch, _ int) string { return m.String() })
	return errors.New("Mismatch found for the following vendorkeys:\n\n" + strings.Join(parts, "\n\n"))
}

// Compare groups actual and expected by spec, sums the metrics and checks
// every vendor key present in expected. Rows with a blank grouping value
// are left out of both sides.
func Compare(actual, expected *tabular.Table, spec Spec) (Result, error) {
	keyPos := slices.Index(spec.GroupColumns, spec.KeyColumn)
	if keyPos < 0 {
		return Result{}, fmt.Errorf("key column %q must be one of the group columns", spec.KeyColumn)
	}

	actualGroups, err := groupByVendorKey(actual, spec, keyPos)
	if err != nil {
		return Result{}, fmt.Errorf("actual: %w", err)
	}
	expectedGroups, err := groupByVendorKey(expected, spec, keyPos)
	if err != nil {
		return Result{}, fmt.Errorf("expected: %w", err)
	}

	result := Result{VendorKeys: lo.Keys(expectedGroups)}
	slices.Sort(result.VendorKeys)

	for _, vendorKey := range result.VendorKeys {
		diffs := diff(actualGroups[vendorKey], expectedGroups[vendorKey], spec)
		if len(diffs) > 0 {
			result.Mismatches = append(result.Mismatches, Mismatch{VendorKey: vendorKey, Differences: diffs})
		}
	}
	return result, nil
}

func groupByVendorKey(table *tabular.Table, spec Spec, keyPos int) (map[string][]tabular.Group, error) {
	complete, err := dropBlankKeys(table, spec.GroupColumns)
	if err != nil {
		return nil, err
	}

	groups, err := complete.GroupSum(spec.GroupColumns, spec.MetricColumns)
	if err != nil {
		return nil, err
	}
	return lo.GroupBy(groups, func(g tabular.Group) string { return g.Key[keyPos] }), nil
}

func dropBlankKeys(table *tabular.Table, columns []string) (*tabular.Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		if idx[i] = table.Index(c); idx[i] < 0 {
			return nil, fmt.Errorf("%w: %s", tabular.ErrMissingColumn, c)
		}
	}

	rows := lo.Filter(table.Rows, func(row []string, _ int) bool {
		return lo.EveryBy(idx, func(i int) bool { return strings.TrimSpace(row[i]) != "" })
	})
	return &tabular.Table{Columns: table.Columns, Rows: rows}, nil
}

// diff compares the grouped sums of one vendor key. Both slices are sorted
// by group key.
func diff(actual, expected []tabular.Group, spec Spec) []string {
	var out []string

	actualByKey := lo.KeyBy(actual, groupKey)
	expectedByKey := lo.KeyBy(expected, groupKey)

	for _, want := range expected {
		got, ok := actualByKey[groupKey(want)]
		if !ok {
			out = append(out, fmt.Sprintf("  missing group %v", want.Key))
			continue
		}
		for i, metric := range spec.MetricColumns {
			if !got.Metrics[i].Equal(want.Metrics[i]) {
				out = append(out, fmt.Sprintf("  %v %s: actual %s, expected %s",
					want.Key, metric, got.Metrics[i], want.Metrics[i]))
			}
		}
	}

	for _, got := range actual {
		if _, ok := expectedByKey[groupKey(got)]; !ok {
			out = append(out, fmt.Sprintf("  unexpected group %v", got.Key))
		}
	}

	if len(actual) != len(expected) {
		out = append(out, fmt.Sprintf("  group count: actual %d, expected %d", len(actual), len(expected)))
	}
	return out
}

func groupKey(g tabular.Group) string {
	return strings.Join(g.Key, "\x1f")
}
