package components

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTablePlain(t *testing.T) {
	tbl := NewTable("Address", "Class")
	tbl.Plain = true
	tbl.AddRow("10.0.0.5", "private")
	tbl.AddRow("203.0.113.9")

	lines := strings.Split(strings.TrimRight(tbl.View(), "\n"), "\n")
	assert.Equal(t, []string{
		"Address      Class    ",
		"───────────  ───────",
		"10.0.0.5     private  ",
		"203.0.113.9           ",
	}, lines)
}

func TestTableNoHeaders(t *testing.T) {
	assert.Empty(t, (&Table{}).View())
}
