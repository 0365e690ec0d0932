package export

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabnorm/internal/normalize"
	"tabnorm/internal/profile"
	"tabnorm/internal/schema"
	"tabnorm/internal/table"
)

func sampleRun(t *testing.T) Run {
	t.Helper()
	tt, err := table.NewTypedTable([]table.TypedColumn{
		table.NewIntColumn("id", []sql.NullInt64{{Int64: 1, Valid: true}, {Int64: 2, Valid: true}}),
		table.NewStringColumn("name", []sql.NullString{{String: "Ann, B", Valid: true}, {}}),
		table.NewTimeColumn("joined", []sql.NullTime{
			{Time: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Valid: true},
			{Time: time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC), Valid: true},
		}),
	})
	require.NoError(t, err)

	return Run{
		Input: filepath.Join("data", "members.csv"),
		Date:  time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		RunID: "run-1",
		Table: tt,
		Profiles: []profile.ColumnProfile{
			{Name: "ID", Type: table.Integer, UniqueCount: 2, Samples: []string{"1", "2"}},
			{Name: "Name", Type: table.String, MissingPct: 50, UniqueCount: 1, Samples: []string{"Ann, B"}},
			{Name: "Joined", Type: table.Date, UniqueCount: 2, Samples: []string{"2024-03-05"}},
		},
		Stats:      []normalize.Stats{{}, {CoercedMissing: 1}, {}},
		CreateSQL:  schema.CreateTableSQL(tt, "members", ""),
		JSONSchema: schema.JSONSchemaFor(tt, "members"),
	}
}

func TestStemAndRunDir(t *testing.T) {
	assert.Equal(t, "salesOUT", Stem("/tmp/in/sales.xlsx"))
	assert.Equal(t, "dataOUT", Stem("https://example.com/x/data.csv?token=1"))

	w := Writer{Root: "out", Sub: "results"}
	got := w.RunDir("in/sales.csv", time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("out", "results", "salesOUT_2026-02-02"), got)

	assert.Equal(t, filepath.Join(DefaultRoot, "salesOUT_2026-02-02"),
		Writer{}.RunDir("sales.csv", time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)))
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	w := Writer{Root: root, Sub: "batch"}
	run := sampleRun(t)

	p, err := w.Write(run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "batch", "membersOUT_2026-02-02"), p.Dir)
	for _, f := range p.All() {
		assert.FileExists(t, f)
	}
	assert.Equal(t, filepath.Join(p.Dir, "membersOUT_clean.csv"), p.CleanCSV)

	csvBody, err := os.ReadFile(p.CleanCSV)
	require.NoError(t, err)
	assert.Equal(t, "id,name,joined\n1,\"Ann, B\",2024-03-05\n2,,2024-03-06 09:30:00\n", string(csvBody))

	var records []map[string]any
	data, err := os.ReadFile(p.DataJSON)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, float64(1), records[0]["id"])
	assert.Nil(t, records[1]["name"])
	assert.Equal(t, "2024-03-06T09:30:00Z", records[1]["joined"])

	sqlBody, err := os.ReadFile(p.SchemaSQL)
	require.NoError(t, err)
	assert.Contains(t, string(sqlBody), "CREATE TABLE members (")

	var rep Report
	repBody, err := os.ReadFile(p.Report)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(repBody, &rep))
	assert.Equal(t, 2, rep.Rows)
	assert.Equal(t, 3, rep.Columns)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, "2026-02-02", rep.RunDate)
	require.Len(t, rep.Profiles, 3)
	assert.Equal(t, table.Date, rep.Profiles[2].Type)
	assert.Equal(t, 1, rep.Cleaned[1].CoercedMissing)
	assert.Equal(t, 1, rep.Cleaned[1].Missing)
}

func TestWrite_ExistingFolder(t *testing.T) {
	root := t.TempDir()
	run := sampleRun(t)

	_, err := Writer{Root: root}.Write(run)
	require.NoError(t, err)

	_, err = Writer{Root: root}.Write(run)
	assert.ErrorIs(t, err, ErrOutputExists)

	_, err = Writer{Root: root, Overwrite: true}.Write(run)
	assert.NoError(t, err)
}

func TestRecords_KeyOrder(t *testing.T) {
	tt, err := table.NewTypedTable([]table.TypedColumn{
		table.NewBoolColumn("z", []sql.NullBool{{Bool: true, Valid: true}}),
		table.NewFloatColumn("a", []sql.NullFloat64{{Float64: 1.5, Valid: true}}),
	})
	require.NoError(t, err)

	b, err := Records(tt)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"z\": true,\n    \"a\": 1.5\n  }\n]\n", string(b))

	empty, err := Records(table.TypedTable{})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(empty))
}
