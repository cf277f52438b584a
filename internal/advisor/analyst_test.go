package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT count() FROM executions":             "SELECT count() FROM executions",
		"```sql\nSELECT state FROM executions\n```":  "SELECT state FROM executions",
		"  SELECT 1 FROM arbitrage.executions;  ":    "SELECT 1 FROM arbitrage.executions",
		"```\nSELECT error_kind FROM executions```":  "SELECT error_kind FROM executions",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeSQL(in))
	}
}

func TestValidateSQL(t *testing.T) {
	assert.NoError(t, validateSQL("SELECT count() FROM executions WHERE state = 'failed'"))
	assert.NoError(t, validateSQL("SELECT state, count() FROM arbitrage.executions GROUP BY state"))

	assert.Error(t, validateSQL(""), "empty")
	assert.Error(t, validateSQL("DROP TABLE executions"), "not a select")
	assert.Error(t, validateSQL("SELECT 1 FROM executions; DELETE FROM executions"), "multiple statements")
	assert.Error(t, validateSQL("SELECT * FROM system.tables"), "wrong table")
	assert.Error(t, validateSQL("SELECT * FROM executions WHERE error = 'TRUNCATE everything'"), "disallowed keyword, conservatively rejected")
}
