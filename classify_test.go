package dynaq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynaq/expr"
)

func TestExtractKeyConditions(t *testing.T) {
	tbl := newTestTable(t, usersTable)

	t.Run("both keys with equality", func(t *testing.T) {
		cond := userID.Eq("u1").And(userEmail.Eq("a@x.io"))
		comps, err := tbl.extractKeyConditions(cond, StrictBoth, true)
		require.NoError(t, err)
		require.Len(t, comps, 2)
	})

	t.Run("partition equality with sort range", func(t *testing.T) {
		cond := userID.Eq("u1").And(userEmail.Between("a", "m"))
		comps, err := tbl.extractKeyConditions(cond, StrictPartition, false)
		require.NoError(t, err)
		require.Len(t, comps, 2)
	})

	t.Run("non-equality partition fails under strictness", func(t *testing.T) {
		cond := userID.Gt("u1")
		_, err := tbl.extractKeyConditions(cond, StrictPartition, false)
		require.Error(t, err)
		var ee *expr.ExpressionError
		require.ErrorAs(t, err, &ee)
	})

	t.Run("duplicate key attribute fails", func(t *testing.T) {
		cond := userID.Eq("u1").And(userID.Eq("u2"))
		_, err := tbl.extractKeyConditions(cond, StrictNone, false)
		require.Error(t, err)
	})

	t.Run("sort key alone fails", func(t *testing.T) {
		cond := userEmail.Eq("a@x.io")
		_, err := tbl.extractKeyConditions(cond, StrictNone, false)
		require.Error(t, err)
	})

	t.Run("all required rejects partial key", func(t *testing.T) {
		cond := userID.Eq("u1")
		_, err := tbl.extractKeyConditions(cond, StrictBoth, true)
		require.Error(t, err)
	})

	t.Run("or join carries no key information", func(t *testing.T) {
		cond := userID.Eq("u1").Or(userName.Eq("Alice"))
		comps, err := tbl.extractKeyConditions(cond, StrictNone, false)
		require.NoError(t, err)
		assert.Empty(t, comps)
	})

	t.Run("key comparison nested under inner join is not eligible", func(t *testing.T) {
		inner := userName.Eq("Alice").Or(userAge.Gt(30))
		cond := userID.Eq("u1").And(inner)
		comps, err := tbl.extractKeyConditions(cond, StrictNone, false)
		require.NoError(t, err)
		require.Len(t, comps, 1)
		assert.Equal(t, "user_id", comps[0].Attr.Name)
	})

	t.Run("plain attribute conditions yield nothing", func(t *testing.T) {
		cond := userName.Eq("Alice").And(userAge.Gt(30))
		comps, err := tbl.extractKeyConditions(cond, StrictNone, false)
		require.NoError(t, err)
		assert.Empty(t, comps)
	})
}

func TestKeyMap(t *testing.T) {
	tbl := newTestTable(t, usersTable)

	key, err := tbl.keyMap(userID.Eq("u1").And(userEmail.Eq("a@x.io")))
	require.NoError(t, err)
	require.Len(t, key, 2)
	require.Contains(t, key, "user_id")
	require.Contains(t, key, "email")

	_, err = tbl.keyMap(userID.Eq("u1").And(userEmail.Gt("a")))
	require.Error(t, err, "non-equality sort comparison cannot resolve a single key")
}

func TestFilterCondition(t *testing.T) {
	tbl := newTestTable(t, usersTable)

	t.Run("key comparison alone leaves no filter", func(t *testing.T) {
		_, ok, err := tbl.filterCondition(userID.Eq("u1"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("and join drops key comparisons", func(t *testing.T) {
		cond := userID.Eq("u1").And(userName.Eq("Alice")).And(userAge.Gte(21))
		_, ok, err := tbl.filterCondition(cond)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("or join is kept whole", func(t *testing.T) {
		cond := userName.Eq("Alice").Or(userID.Eq("u1"))
		_, ok, err := tbl.filterCondition(cond)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("and join of only key comparisons leaves no filter", func(t *testing.T) {
		cond := userID.Eq("u1").And(userEmail.Eq("a@x.io"))
		_, ok, err := tbl.filterCondition(cond)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
