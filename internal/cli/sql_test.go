package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	peopleRDBMapping = filepath.Join("testdata", "mappings", "people_rdb.cue")
	employeesMapping = filepath.Join("testdata", "renamed", "employees.cue")
)

func TestSQLText(t *testing.T) {
	cmd := NewSQLCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, peopleRDBMapping, "Person")
	require.NoError(t, err)

	assert.Contains(t, out, "-- Projection_1\n"+
		`SELECT "person"."id", "person"."knows", "person"."org_id" FROM "person" `+
		`ORDER BY "id" COLLATE BINARY ASC, "knows" COLLATE BINARY ASC, "org_id" COLLATE BINARY ASC;`)
	assert.Contains(t, out, "-- Join_6\n")
	assert.Contains(t, out, `INNER JOIN "org" AS "join_1" ON "person"."org_id" = "join_1"."id"`)
	assert.Contains(t, out, "-- Join_10\n")
	assert.Contains(t, out, `INNER JOIN "person" AS "join_0" ON "person"."knows" = "join_0"."id"`)
	assert.Equal(t, 3, strings.Count(out, "ORDER BY"), "every statement is ordered")
}

func TestSQLJSON(t *testing.T) {
	cmd := NewSQLCommand(&RootOptions{Format: "json"})
	out, _, err := execute(t, cmd, peopleRDBMapping, "Org")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   SQLResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Org", resp.Data.TriplesMap)
	assert.Equal(t, "Source_2", resp.Data.Source)
	require.Len(t, resp.Data.Statements, 1, "the parent side does not own the join")
	assert.Equal(t, "Projection_3", resp.Data.Statements[0].Node)
}

func TestSQLRenamedFields(t *testing.T) {
	cmd := NewSQLCommand(&RootOptions{Format: "json"})
	out, _, err := execute(t, cmd, employeesMapping, "Employee")
	require.NoError(t, err)

	var resp struct {
		Data SQLResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Statements, 3)

	assert.Equal(t, "Projection_1", resp.Data.Statements[0].Node)
	assert.Equal(t,
		`SELECT "employee"."it.dept", "employee"."it.id", "employee"."it.name" FROM "employee" `+
			`ORDER BY "it.dept" COLLATE BINARY ASC, "it.id" COLLATE BINARY ASC, "it.name" COLLATE BINARY ASC`,
		resp.Data.Statements[0].SQL)

	assert.Equal(t, "Rename_2", resp.Data.Statements[1].Node)
	assert.Equal(t,
		`SELECT "employee"."it.dept" AS "emp.dept", "employee"."it.id" AS "emp.id", "employee"."it.name" AS "emp.name" `+
			`FROM "employee" `+
			`ORDER BY "emp.dept" COLLATE BINARY ASC, "emp.id" COLLATE BINARY ASC, "emp.name" COLLATE BINARY ASC`,
		resp.Data.Statements[1].SQL)

	assert.Equal(t, "Join_8", resp.Data.Statements[2].Node)
	assert.Contains(t, resp.Data.Statements[2].SQL,
		`FROM "employee" INNER JOIN "dept" AS "join_1" ON "employee"."it.dept" = "join_1"."id"`)
	assert.Contains(t, resp.Data.Statements[2].SQL, `"employee"."it.dept" AS "emp.dept"`)
}

func TestSQLNotRelational(t *testing.T) {
	cmd := NewSQLCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, peopleRDBMapping, "Tag")
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotRelational)
	assert.Contains(t, err.Error(), "Tag has no SQL form")
}

func TestSQLUnknownTriplesMap(t *testing.T) {
	cmd := NewSQLCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, peopleRDBMapping, "Nobody")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "triples map not found: Nobody")
}

func TestSQLInvalidMapping(t *testing.T) {
	cmd := NewSQLCommand(&RootOptions{Format: "text"})
	_, _, err := execute(t, cmd, filepath.Join("testdata", "unresolved", "missing_parent.cue"), "Person")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
