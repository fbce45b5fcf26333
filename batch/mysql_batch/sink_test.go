package mysql_batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestParseTerminationRow(t *testing.T) {
	row, err := parseTerminationRow("P1,PAR1,1")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"P1", "PAR1", 1}, row)

	row, err = parseTerminationRow("P2,,0")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"P2", "", 0}, row)

	_, err = parseTerminationRow("P1,PAR1,x")
	require.Error(t, err)
	_, err = parseTerminationRow("P1,1")
	require.Error(t, err)
}

func TestParseLatestRow(t *testing.T) {
	line := `P1,"ACME, INC.",x,PAR1,2020-06-15`
	row, err := parseLatestRow(line)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"P1", "PAR1", "2020-06-15", line}, row)

	_, err = parseLatestRow("P1,short")
	require.Error(t, err)
}

func TestLayoutSQL(t *testing.T) {
	l, err := lookupLayout("termination")
	require.NoError(t, err)
	create := l.createSQL("`awards`")
	require.Contains(t, create, "CREATE TABLE IF NOT EXISTS `awards`")
	require.Contains(t, create, "PRIMARY KEY (`award_id_piid`, `parent_award_id`)")

	stage := l.createStageSQL("`awards_staging_tmp`")
	require.Contains(t, stage, "CREATE TEMPORARY TABLE `awards_staging_tmp`")
	require.NotContains(t, stage, "PRIMARY KEY")

	upsert := l.upsertSQL("`awards`", "`awards_staging_tmp`")
	require.Contains(t, upsert, "INSERT INTO `awards` (`award_id_piid`, `parent_award_id`, `terminated`)")
	require.Contains(t, upsert, "FROM `awards_staging_tmp`")

	_, err = lookupLayout("wordcount")
	require.Error(t, err)
}

func TestSinkConfigDefaults(t *testing.T) {
	cfg := SinkConfig{}
	cfg.WithDefaults()
	require.Equal(t, "mr-out-*.txt", cfg.InputGlob)
	require.Equal(t, 2000, cfg.BatchSize)
	require.Equal(t, "mr-out-*.txt", NewSinkAdapter(SinkConfig{}).InputGlob())
}

func TestQuoteIdentifier(t *testing.T) {
	q, err := quoteIdentifier("award_terminations")
	require.NoError(t, err)
	require.Equal(t, "`award_terminations`", q)

	_, err = quoteIdentifier("awards; DROP TABLE x")
	require.Error(t, err)
}

func writeReduceOutput(t *testing.T, lines string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mr-out-0.txt"), []byte(lines), 0o644))
	return filepath.Join(dir, "mr-out-*.txt")
}

func expectStage(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `awards`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TEMPORARY TABLE IF EXISTS `awards_staging_tmp`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TEMPORARY TABLE `awards_staging_tmp`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `awards_staging_tmp`")).WillReturnResult(sqlmock.NewResult(0, 2))
}

func TestImportReduceOutputsCommitsLoadAndUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectStage(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `awards` (")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("DROP TEMPORARY TABLE IF EXISTS `awards_staging_tmp`")).WillReturnResult(sqlmock.NewResult(0, 0))

	err = ImportReduceOutputs(context.Background(), db, SinkConfig{
		TargetTable: "awards",
		Job:         "termination",
		InputGlob:   writeReduceOutput(t, "P1,PAR1,1\nP2,PAR2,0\n"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportReduceOutputsRollsBackReplaceOnFailedUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// DELETE and upsert share the transaction, so the failed upsert undoes the DELETE.
	expectStage(mock)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `awards`")).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `awards` (")).WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()
	mock.ExpectExec(regexp.QuoteMeta("DROP TEMPORARY TABLE IF EXISTS `awards_staging_tmp`")).WillReturnResult(sqlmock.NewResult(0, 0))

	err = ImportReduceOutputs(context.Background(), db, SinkConfig{
		TargetTable: "awards",
		Job:         "termination",
		InputGlob:   writeReduceOutput(t, "P1,PAR1,1\nP2,PAR2,0\n"),
		Replace:     true,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportReduceOutputsRejectsBadRowBeforeUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `awards`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TEMPORARY TABLE IF EXISTS `awards_staging_tmp`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TEMPORARY TABLE `awards_staging_tmp`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectExec(regexp.QuoteMeta("DROP TEMPORARY TABLE IF EXISTS `awards_staging_tmp`")).WillReturnResult(sqlmock.NewResult(0, 0))

	err = ImportReduceOutputs(context.Background(), db, SinkConfig{
		TargetTable: "awards",
		Job:         "termination",
		InputGlob:   writeReduceOutput(t, "P1,PAR1,yes\n"),
		Replace:     true,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
