package visitors_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storekriti/internal/testsupport"
	"storekriti/internal/visitors"
)

func TestCountReturningAcrossChunks(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	const total = 320 // three lookups: 150 + 150 + 20
	now := time.Now().UTC()
	rows := make([]visitors.Visitor, 0, total)
	ids := make([]string, 0, total)
	want := 0
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("v%03d", i)
		sessions := 1
		// Every third visitor came back, including ids on both sides of each chunk boundary.
		if i%3 == 0 || i == 149 || i == 151 || i == 299 {
			sessions = 2 + i%4
			want++
		}
		rows = append(rows, visitors.Visitor{VisitorID: id, LastSeen: now, CreatedAt: now, SessionsCount: sessions})
		ids = append(ids, id)
	}
	require.NoError(t, db.CreateInBatches(rows, 100).Error)

	got, err := visitors.CountReturning(db, ids)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("unknown ids are ignored", func(t *testing.T) {
		got, err := visitors.CountReturning(db, append([]string{"missing-1", "missing-2"}, ids[:visitors.ReturningLookupChunk]...))
		require.NoError(t, err)
		assert.Equal(t, 51, got, "50 multiples of three below 150 plus v149")
	})

	t.Run("empty input", func(t *testing.T) {
		got, err := visitors.CountReturning(db, nil)
		require.NoError(t, err)
		assert.Zero(t, got)
	})
}
