// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/companion/internal/platform/migration"
)

/*
TestToPgx5DSN verifies the scheme rewrite for every accepted prefix.
*/
func TestToPgx5DSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/companion", "pgx5://u:p@localhost:5432/companion"},
		{"postgresql://u:p@db/companion?sslmode=disable", "pgx5://u:p@db/companion?sslmode=disable"},
		{"pgx5://u:p@db/companion", "pgx5://u:p@db/companion"},
		{"host=localhost dbname=companion", "host=localhost dbname=companion"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, migration.ToPgx5DSN(tt.in))
	}
}
