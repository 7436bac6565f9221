package tabular

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		columns  []string
		rowCount int
	}{
		{
			name:     "plain",
			input:    "Date,Impressions\n2024-01-01,10\n2024-01-02,20\n",
			columns:  []string{"Date", "Impressions"},
			rowCount: 2,
		},
		{
			name:     "byte order mark",
			input:    "\xEF\xBB\xBFDate,Clicks\n2024-01-01,1\n",
			columns:  []string{"Date", "Clicks"},
			rowCount: 1,
		},
		{
			name:     "header only",
			input:    "Date,Clicks\n",
			columns:  []string{"Date", "Clicks"},
			rowCount: 0,
		},
		{
			name:     "empty input",
			input:    "",
			columns:  []string{},
			rowCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Read(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.columns, table.Columns)
			assert.Equal(t, tt.rowCount, table.Len())
		})
	}
}

func TestReadRaggedRows(t *testing.T) {
	table, err := Read(strings.NewReader("a,b,c\n1,2\n1,2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", ""}, table.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, table.Rows[1])
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	table := &Table{
		Columns: []string{"Campaign", "Spend"},
		Rows:    [][]string{{"spring, sale", "1.50"}, {"brand", "2"}},
	}
	require.NoError(t, table.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestColumnAndRecord(t *testing.T) {
	table := &Table{
		Columns: []string{"Vendor Key", "Clicks"},
		Rows:    [][]string{{"API_Reddit_a", "1"}, {"API_Reddit_b", "2"}, {"API_Reddit_a", "3"}},
	}

	values, err := table.Column("Clicks")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, values)

	_, err = table.Column("Cost")
	assert.ErrorIs(t, err, ErrMissingColumn)

	assert.Equal(t, map[string]string{"Vendor Key": "API_Reddit_a", "Clicks": "3"}, table.Record(2))
}

func TestGroupSum(t *testing.T) {
	table := &Table{
		Columns: []string{"Date", "Campaign", "Clicks", "Net Cost"},
		Rows: [][]string{
			{"2024-01-02", "b", "1", "0.10"},
			{"2024-01-01", "a", "2", "0.20"},
			{"2024-01-02", "b", "3", "0.20"},
			{"2024-01-01", "a", "", "1,000.05"},
		},
	}

	groups, err := table.GroupSum([]string{"Date", "Campaign"}, []string{"Clicks", "Net Cost"})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, []string{"2024-01-01", "a"}, groups[0].Key)
	assert.True(t, decimal.NewFromInt(2).Equal(groups[0].Metrics[0]))
	assert.True(t, decimal.RequireFromString("1000.25").Equal(groups[0].Metrics[1]))

	assert.Equal(t, []string{"2024-01-02", "b"}, groups[1].Key)
	assert.True(t, decimal.NewFromInt(4).Equal(groups[1].Metrics[0]))
	assert.True(t, decimal.RequireFromString("0.3").Equal(groups[1].Metrics[1]))
}

func TestGroupSumErrors(t *testing.T) {
	table := &Table{Columns: []string{"Date", "Clicks"}, Rows: [][]string{{"2024-01-01", "n/a"}}}

	_, err := table.GroupSum([]string{"Campaign"}, []string{"Clicks"})
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = table.GroupSum([]string{"Date"}, []string{"Clicks"})
	assert.Error(t, err)
}
