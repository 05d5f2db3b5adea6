package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuerierFor(t *testing.T) {
	db := &sql.DB{}

	t.Run("outside a transaction uses the pool", func(t *testing.T) {
		_, ok := From(context.Background())
		assert.False(t, ok)
		assert.Same(t, db, QuerierFor(context.Background(), db))
	})

	t.Run("nil transaction is ignored", func(t *testing.T) {
		ctx := WithTx(context.Background(), nil)
		_, ok := From(ctx)
		assert.False(t, ok)
		assert.Same(t, db, QuerierFor(ctx, db))
	})

	t.Run("inside a transaction uses it", func(t *testing.T) {
		tx := &sql.Tx{}
		ctx := WithTx(context.Background(), tx)
		got, ok := From(ctx)
		assert.True(t, ok)
		assert.Same(t, tx, got)
		assert.Same(t, tx, QuerierFor(ctx, db))
	})
}
