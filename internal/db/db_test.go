package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDeclaresSessionUniqueness(t *testing.T) {
	s := Schema()
	assert.Contains(t, s, "checkout_session_id TEXT NOT NULL UNIQUE")
	assert.Contains(t, s, "UNIQUE (account_id, config_type)")
	assert.Contains(t, s, "FUNCTION has_role_or_higher")
}

func TestSchemaIsIdempotent(t *testing.T) {
	for _, line := range strings.Split(Schema(), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "CREATE TABLE") || strings.HasPrefix(line, "CREATE INDEX") {
			assert.Contains(t, line, "IF NOT EXISTS", line)
		}
		if strings.HasPrefix(line, "CREATE FUNCTION") {
			t.Errorf("function must use CREATE OR REPLACE: %s", line)
		}
	}
}
