package expr

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_ClauseOrdering(t *testing.T) {
	c, err := Compile(
		String("tags").Remove(),
		Add(Number("count"), 5),
		String("name").Set("X"),
	)
	require.NoError(t, err)
	require.False(t, c.Empty())

	setIdx := strings.Index(c.Expression, "SET")
	addIdx := strings.Index(c.Expression, "ADD")
	remIdx := strings.Index(c.Expression, "REMOVE")
	require.GreaterOrEqual(t, setIdx, 0)
	require.Greater(t, addIdx, setIdx)
	require.Greater(t, remIdx, addIdx)
}

func TestCompile_PlaceholdersAreDistinct(t *testing.T) {
	c, err := Compile(
		String("a").Set("1"),
		String("b").Set("2"),
		Add(Number("c"), 3),
	)
	require.NoError(t, err)
	assert.Len(t, c.Values, 3)
	for ph := range c.Values {
		assert.True(t, strings.HasPrefix(ph, ":v"))
		assert.Contains(t, c.Expression, ph)
	}
}

func TestCompile_EmptySetBecomesRemove(t *testing.T) {
	c, err := Compile(String("name").Set(""))
	require.NoError(t, err)
	assert.Equal(t, "REMOVE name", c.Expression)
	assert.Empty(t, c.Values)
}

func TestCompile_NoOps(t *testing.T) {
	t.Run("empty set with if_not_exists vanishes", func(t *testing.T) {
		c, err := Compile(String("name").SetIfNotExists(""))
		require.NoError(t, err)
		assert.True(t, c.Empty())
	})

	t.Run("add zero vanishes", func(t *testing.T) {
		c, err := Compile(Add(Number("count"), 0))
		require.NoError(t, err)
		assert.True(t, c.Empty())
	})

	t.Run("empty list extension vanishes", func(t *testing.T) {
		c, err := Compile(String("log").Append())
		require.NoError(t, err)
		assert.True(t, c.Empty())
	})

	t.Run("no updates at all", func(t *testing.T) {
		c, err := Compile()
		require.NoError(t, err)
		assert.True(t, c.Empty())
	})
}

func TestCompile_LastWriteWinsPerAttribute(t *testing.T) {
	c, err := Compile(
		String("name").Set("first"),
		Number("age").Set(30),
		String("name").Set("second"),
	)
	require.NoError(t, err)
	assert.Len(t, c.Values, 2)

	var hasSecond bool
	for _, v := range c.Values {
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == "second" {
			hasSecond = true
		}
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == "first" {
			t.Fatalf("overwritten value still present: %v", s.Value)
		}
	}
	assert.True(t, hasSecond)
}

func TestCompile_SetIfNotExists(t *testing.T) {
	c, err := Compile(String("name").SetIfNotExists("X"))
	require.NoError(t, err)
	assert.Contains(t, c.Expression, "if_not_exists(name,")
}

func TestCompile_ListExtend(t *testing.T) {
	t.Run("append puts new values last", func(t *testing.T) {
		c, err := Compile(String("log").Append("a", "b"))
		require.NoError(t, err)
		assert.Regexp(t, `^SET log = list_append\(log, :v\d+\)$`, c.Expression)
	})

	t.Run("prepend puts new values first", func(t *testing.T) {
		c, err := Compile(String("log").Prepend("a"))
		require.NoError(t, err)
		assert.Regexp(t, `^SET log = list_append\(:v\d+, log\)$`, c.Expression)
	})
}

func TestCompile_Validation(t *testing.T) {
	t.Run("nested attribute paths are rejected", func(t *testing.T) {
		_, err := Compile(String("profile.name").Set("X"))
		require.Error(t, err)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("removing a required attribute is rejected", func(t *testing.T) {
		_, err := Compile(String("id").AsPartitionKey().Remove())
		require.Error(t, err)
	})
}

func TestCompile_SubtractNegates(t *testing.T) {
	c, err := Compile(Subtract(Number("count"), 4))
	require.NoError(t, err)
	require.Len(t, c.Values, 1)
	for _, v := range c.Values {
		n, ok := v.(*types.AttributeValueMemberN)
		require.True(t, ok)
		assert.Equal(t, "-4", n.Value)
	}
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty([]string{}))
	assert.True(t, IsEmpty(map[string]int{}))
	assert.False(t, IsEmpty("x"))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty(false))
	assert.False(t, IsEmpty([]string{"x"}))
}
