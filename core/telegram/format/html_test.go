package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoldEscapes(t *testing.T) {
	assert.Equal(t, "<b>A &lt;b&gt; &amp; C</b>", Bold("A <b> & C"))
	assert.Equal(t, "<b>До 100$</b>", Bold("До 100$"))
}

func TestLines(t *testing.T) {
	assert.Equal(t, "a\nb", Lines("a", "", "b"))
	assert.Equal(t, "", Lines())
}
