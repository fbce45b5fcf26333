package mapreduce

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/emptyOVO/mrkit-awards/mrapps"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

func readOutputs(t *testing.T, outputs []string) []string {
	t.Helper()
	var lines []string
	for _, out := range outputs {
		b, err := os.ReadFile(out)
		require.NoError(t, err)
		for _, l := range strings.Split(strings.TrimSpace(string(b)), "\n") {
			if l != "" {
				lines = append(lines, l)
			}
		}
	}
	sort.Strings(lines)
	return lines
}

func TestRunLocalLatest(t *testing.T) {
	dir := t.TempDir()
	in1 := writeInput(t, dir, "a.csv",
		"award_id_piid,agency,desc,parent_award_id,last_modified_date",
		`P1,A,"old, text",PAR1,2019-01-01`,
		`P2,A,x,PAR2,2018-05-05`,
		`broken,"quote`,
	)
	in2 := writeInput(t, dir, "b.csv",
		"award_id_piid,agency,desc,parent_award_id,last_modified_date",
		`P1,B,"new, text",PAR1,2020-06-15`,
		`P3,A,y,,2021-01-01`,
	)
	job, err := mrapps.Lookup(mrapps.JobLatest)
	require.NoError(t, err)

	res, err := RunLocal(context.Background(), LocalConfig{
		Inputs:     []string{in1, in2},
		Job:        job,
		Reducers:   3,
		ChunkLines: 1,
		OutputDir:  filepath.Join(dir, "out"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.Len(t, res.Outputs, 3)
	require.Equal(t, int64(4), res.Map.Emitted)
	require.Equal(t, int64(1), res.Map.Dropped)
	require.Equal(t, int64(2), res.Map.Header)
	require.Equal(t, int64(3), res.Reduce.Groups)

	require.Equal(t, []string{
		`P1,B,"new, text",PAR1,2020-06-15`,
		`P2,A,x,PAR2,2018-05-05`,
		`P3,A,y,,2021-01-01`,
	}, readOutputs(t, res.Outputs))

	spills, err := filepath.Glob(filepath.Join(dir, "out", "imd", "imd-*"))
	require.NoError(t, err)
	require.Empty(t, spills)
}

func TestRunLocalTermination(t *testing.T) {
	dir := t.TempDir()
	row := func(piid, parent, action string) string {
		fields := make([]string, 277)
		fields[2], fields[7], fields[78] = piid, parent, action
		return strings.Join(fields, ",")
	}
	in := writeInput(t, dir, "a.csv",
		row("P1", "PAR1", "AWARD"),
		row("P1", "PAR1", "TERMINATE FOR CAUSE"),
		row("P1", "PAR1", "AWARD"),
		row("P2", "PAR2", "AWARD"),
		"P9,short,row",
	)
	job, err := mrapps.Lookup(mrapps.JobTermination)
	require.NoError(t, err)

	res, err := RunLocal(context.Background(), LocalConfig{
		Inputs:     []string{in},
		Job:        job,
		Reducers:   2,
		ChunkLines: 2,
		InRAM:      true,
		OutputDir:  filepath.Join(dir, "out"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"P1,PAR1,1", "P2,PAR2,0"}, readOutputs(t, res.Outputs))
}

func TestRunLocalRequiresJob(t *testing.T) {
	_, err := RunLocal(context.Background(), LocalConfig{Inputs: []string{"x"}})
	require.Error(t, err)

	job, err := mrapps.Lookup(mrapps.JobLatest)
	require.NoError(t, err)
	res, err := RunLocal(context.Background(), LocalConfig{Job: job})
	require.NoError(t, err)
	require.Empty(t, res.Outputs)
}

func TestRunLocalMissingInput(t *testing.T) {
	job, err := mrapps.Lookup(mrapps.JobLatest)
	require.NoError(t, err)
	_, err = RunLocal(context.Background(), LocalConfig{
		Inputs:    []string{filepath.Join(t.TempDir(), "missing.csv")},
		Job:       job,
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
}
