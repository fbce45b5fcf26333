package mysql_batch

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/emptyOVO/mrkit-awards/mrapps"
	"github.com/emptyOVO/mrkit-awards/schema"
	log "github.com/sirupsen/logrus"
)

type column struct {
	name string
	ddl  string
}

// layout is the target table shape of one job's reduce output.
type layout struct {
	columns []column
	parse   func(line string) ([]interface{}, error)

	// update is the ON DUPLICATE KEY UPDATE assignment list.
	update string
}

var layouts = map[string]layout{
	mrapps.JobTermination: {
		columns: []column{
			{"award_id_piid", "VARCHAR(255) COLLATE utf8mb4_bin NOT NULL"},
			{"parent_award_id", "VARCHAR(255) COLLATE utf8mb4_bin NOT NULL"},
			{"terminated", "TINYINT NOT NULL"},
		},
		update: "`terminated`=GREATEST(`terminated`, VALUES(`terminated`))",
		parse:  parseTerminationRow,
	},
	mrapps.JobLatest: {
		columns: []column{
			{"award_id_piid", "VARCHAR(255) COLLATE utf8mb4_bin NOT NULL"},
			{"parent_award_id", "VARCHAR(255) COLLATE utf8mb4_bin NOT NULL"},
			{"last_modified_date", "VARCHAR(64) COLLATE utf8mb4_bin NOT NULL"},
			{"record", "LONGTEXT NOT NULL"},
		},
		// record must be assigned before last_modified_date changes.
		update: "`record`=IF(VALUES(`last_modified_date`) > `last_modified_date`, VALUES(`record`), `record`), " +
			"`last_modified_date`=GREATEST(`last_modified_date`, VALUES(`last_modified_date`))",
		parse: parseLatestRow,
	},
}

// parseTerminationRow splits piid,parent,flag. The flag is taken after the
// last comma and the key is split at its first comma.
func parseTerminationRow(line string) ([]interface{}, error) {
	i := strings.LastIndexByte(line, ',')
	if i < 0 {
		return nil, fmt.Errorf("termination row has no flag: %q", line)
	}
	flag, err := strconv.Atoi(line[i+1:])
	if err != nil {
		return nil, fmt.Errorf("termination row flag: %w", err)
	}
	parts := strings.SplitN(line[:i], ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("termination row has no parent_award_id: %q", line)
	}
	return []interface{}{parts[0], parts[1], flag}, nil
}

// parseLatestRow decodes a winning record with the latest export schema.
func parseLatestRow(line string) ([]interface{}, error) {
	rec, err := schema.Latest.Decode(line)
	if err != nil {
		return nil, err
	}
	return []interface{}{rec.PIID(), rec.ParentAwardID(), mrapps.LastModified(line), line}, nil
}

func lookupLayout(job string) (layout, error) {
	l, ok := layouts[job]
	if !ok {
		return layout{}, fmt.Errorf("no sink layout for job %q", job)
	}
	return l, nil
}

func (l layout) quotedColumns() []string {
	out := make([]string, 0, len(l.columns))
	for _, c := range l.columns {
		out = append(out, "`"+c.name+"`")
	}
	return out
}

func (l layout) columnDefs() []string {
	defs := make([]string, 0, len(l.columns)+1)
	for _, c := range l.columns {
		defs = append(defs, fmt.Sprintf("  `%s` %s", c.name, c.ddl))
	}
	return defs
}

func (l layout) createSQL(table string) string {
	defs := append(l.columnDefs(), "  PRIMARY KEY (`award_id_piid`, `parent_award_id`)")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", table, strings.Join(defs, ",\n"))
}

// createStageSQL builds a session scoped staging table. Temporary table DDL
// does not commit an open transaction.
func (l layout) createStageSQL(stage string) string {
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s (\n%s\n)", stage, strings.Join(l.columnDefs(), ",\n"))
}

func (l layout) upsertSQL(table, stage string) string {
	cols := strings.Join(l.quotedColumns(), ", ")
	return fmt.Sprintf(`
INSERT INTO %s (%s)
SELECT %s
FROM %s
ON DUPLICATE KEY UPDATE %s
`, table, cols, cols, stage, l.update)
}

// ImportReduceOutputs loads mr-out-* files into the target table. The target
// table and a temporary staging table are created first, on one pinned
// connection, since CREATE TABLE commits implicitly. The staging load, the
// optional DELETE and the upsert then run in a single transaction, so a failed
// upsert leaves the target table untouched.
func ImportReduceOutputs(ctx context.Context, db *sql.DB, cfg SinkConfig) error {
	cfg.WithDefaults()
	if cfg.TargetTable == "" {
		return fmt.Errorf("target table is required")
	}
	l, err := lookupLayout(cfg.Job)
	if err != nil {
		return err
	}
	table, err := quoteIdentifier(cfg.TargetTable)
	if err != nil {
		return err
	}

	files, err := filepath.Glob(cfg.InputGlob)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no reduce output files matched: %s", cfg.InputGlob)
	}

	stageName := cfg.TargetTable + "_staging_tmp"
	stageTable, err := quoteIdentifier(stageName)
	if err != nil {
		return err
	}

	// Temporary tables belong to one session.
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	dropStage := fmt.Sprintf(`DROP TEMPORARY TABLE IF EXISTS %s`, stageTable)
	if _, err := conn.ExecContext(ctx, l.createSQL(table)); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, dropStage); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, l.createStageSQL(stageTable)); err != nil {
		return err
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), dropStage); err != nil {
			log.WithError(err).WithField("table", stageName).Warn("[Sink] Drop staging table")
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	n, err := loadReduceFilesIntoStage(ctx, tx, files, stageTable, l, cfg.BatchSize)
	if err != nil {
		return err
	}

	if cfg.Replace {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, l.upsertSQL(table, stageTable)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.WithFields(log.Fields{"table": cfg.TargetTable, "rows": n, "files": len(files)}).Info("[Sink] Import reduce outputs")
	return nil
}

func loadReduceFilesIntoStage(ctx context.Context, tx *sql.Tx, files []string, stageTable string, l layout, batchSize int) (int64, error) {
	var total int64
	width := len(l.columns)
	batch := make([][]interface{}, 0, batchSize)
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	cols := strings.Join(l.quotedColumns(), ", ")
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		args := make([]interface{}, 0, len(batch)*width)
		valueSQL := make([]string, 0, len(batch))
		for _, row := range batch {
			valueSQL = append(valueSQL, placeholder)
			args = append(args, row...)
		}
		sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", stageTable, cols, strings.Join(valueSQL, ","))
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return total, err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1<<16), 64<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			row, err := l.parse(line)
			if err != nil {
				f.Close()
				return total, fmt.Errorf("%s: %w", file, err)
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					f.Close()
					return total, err
				}
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return total, err
		}
		f.Close()
	}

	return total, flush()
}
