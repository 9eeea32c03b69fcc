package readfiles

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goptdesign/utils"
)

func TestReadMatrix(t *testing.T) {
	{
		input := `# quadratic in x
one, x, x2
1, -1, 1
1, 0, 0
1, 1, 1
`
		M, names, err := ReadMatrixFrom(strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "x", "x2"}, names)
		nr, nc := M.Dims()
		assert.Equal(t, 3, nr)
		assert.Equal(t, 3, nc)
		assert.Equal(t, []float64{1, -1, 1}, M.Row(0))
		assert.Equal(t, []float64{1, 1, 1}, M.Row(2))
	}
	{
		// No header
		M, names, err := ReadMatrixFrom(strings.NewReader("1,2\n3,4.5\n"))
		require.NoError(t, err)
		assert.Nil(t, names)
		assert.Equal(t, []float64{3, 4.5}, M.Row(1))
	}
	{
		_, _, err := ReadMatrixFrom(strings.NewReader("1,2\n3,x\n"))
		assert.Error(t, err)
		_, _, err = ReadMatrixFrom(strings.NewReader("1,2\n3\n"))
		assert.Error(t, err)
		_, _, err = ReadMatrixFrom(strings.NewReader("# nothing\n"))
		assert.Error(t, err)
		_, _, err = ReadMatrixFrom(strings.NewReader("a,b\n"))
		assert.Error(t, err)
		_, _, err = ReadMatrixFrom(strings.NewReader("1,2\n3,NaN\n"))
		assert.Error(t, err)
	}
}

func TestWriteMatrix(t *testing.T) {
	var (
		M   = utils.NewMatrix(2, 2, []float64{1, 0.1, -2.5, 1e-20})
		buf bytes.Buffer
	)
	require.NoError(t, WriteMatrix(&buf, M, "a", "b"))
	assert.Equal(t, "a,b\n1,0.1\n-2.5,1e-20\n", buf.String())

	path := filepath.Join(t.TempDir(), "m.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	R, names, err := ReadMatrix(path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, M.RawMatrix().Data, R.RawMatrix().Data)

	_, _, err = ReadMatrix(filepath.Join(t.TempDir(), "missing.csv"), false)
	assert.Error(t, err)
}
