package mysql_batch

import (
	"fmt"
	"regexp"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SinkConfig configures reduce output import into MySQL.
type SinkConfig struct {
	TargetTable string `json:"targettable"`
	InputGlob   string `json:"inputglob"`
	Replace     bool   `json:"replace"`
	BatchSize   int    `json:"batchsize"`

	// Job selects the table layout; it is filled from the flow job when empty.
	Job string `json:"job"`
}

func (c *SinkConfig) WithDefaults() {
	if c.InputGlob == "" {
		c.InputGlob = "mr-out-*.txt"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 2000
	}
}

func quoteIdentifier(s string) (string, error) {
	if !identifierRe.MatchString(s) {
		return "", fmt.Errorf("invalid identifier: %s", s)
	}
	return "`" + s + "`", nil
}
