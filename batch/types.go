package batch

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emptyOVO/mrkit-awards/batch/mysql_batch"
	"github.com/emptyOVO/mrkit-awards/schema"
	_ "github.com/go-sql-driver/mysql"
)

// DBConfig defines MySQL connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Params   map[string]string
}

func (c DBConfig) dsn() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	params := map[string]string{
		"parseTime": "true",
		"charset":   "utf8mb4",
	}
	for k, v := range c.Params {
		params[k] = v
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.User,
		c.Password,
		host,
		port,
		c.Database,
		strings.Join(parts, "&"),
	)
}

func openDB(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("db user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("db database is required")
	}
	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type SinkConfig = mysql_batch.SinkConfig

// FlowConfig describes input files -> award job -> optional sink.
type FlowConfig struct {
	Version   string              `json:"version"`
	Job       string              `json:"job"`
	Inputs    []string            `json:"inputs"`
	Transform FlowTransformConfig `json:"transform"`
	Sink      FlowSinkConfig      `json:"sink"`

	// Schema overrides the job's default export layout.
	Schema *schema.Schema `json:"schema"`
}

type FlowTransformConfig struct {
	Reducers   int    `json:"reducers"`
	ChunkLines int    `json:"chunk_lines"`
	InRAM      bool   `json:"in_ram"`
	OutputDir  string `json:"output_dir"`
	Strict     bool   `json:"strict"`
}

type FlowSinkConfig struct {
	Type   string     `json:"type"`
	DB     DBConfig   `json:"db"`
	Config SinkConfig `json:"config"`
}

func (c *FlowConfig) withDefaults() {
	if c.Transform.Reducers <= 0 {
		c.Transform.Reducers = 8
	}
	if c.Transform.ChunkLines <= 0 {
		c.Transform.ChunkLines = 100000
	}
	if c.Transform.OutputDir == "" {
		c.Transform.OutputDir = "output"
	}
	if c.Sink.Type == "" {
		c.Sink.Type = "none"
	}
	if c.Sink.Config.Job == "" {
		c.Sink.Config.Job = c.Job
	}
	if c.Sink.Config.InputGlob == "" {
		c.Sink.Config.InputGlob = filepath.Join(c.Transform.OutputDir, "mr-out-*.txt")
	}
	c.Sink.Config.WithDefaults()
}
