package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCriterion(t *testing.T) {
	{
		c, err := NewCriterion("Alias")
		assert.NoError(t, err)
		assert.Equal(t, Criterion_Alias, c)
		assert.Equal(t, "ALIAS", c.String())
		_, err = NewCriterion("Q")
		assert.Error(t, err)
		assert.Equal(t, "Criterion(42)", Criterion(42).String())
	}
	{
		for _, name := range []string{"D", "T", "E", "CUSTOM"} {
			c, _ := NewCriterion(name)
			assert.Equal(t, Maximize, c.Direction(), name)
		}
		for _, name := range []string{"I", "A", "G", "ALIAS"} {
			c, _ := NewCriterion(name)
			assert.Equal(t, Minimize, c.Direction(), name)
		}
	}
	{
		assert.True(t, Maximize.Improves(2, 1))
		assert.False(t, Maximize.Improves(1, 1))
		assert.True(t, Minimize.Improves(1, 2))
		assert.False(t, Minimize.Improves(2, 2))

		assert.True(t, Maximize.Continue(10, Maximize.Seed(10), 0.01))
		assert.True(t, Minimize.Continue(10, Minimize.Seed(10), 0.01))
		assert.False(t, Maximize.Continue(10.05, 10, 0.01))
		assert.True(t, Maximize.Continue(10.5, 10, 0.01))
		assert.False(t, Minimize.Continue(9.95, 10, 0.01))
		assert.True(t, Minimize.Continue(9.5, 10, 0.01))
	}
}
