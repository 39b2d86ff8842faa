package hostinventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTapNameRegex(t *testing.T) {
	cases := []struct {
		name      string
		wantMatch bool
		vmid      string
		netidx    string
	}{
		{"tap100i0", true, "100", "0"},
		{"tap4001i31", true, "4001", "31"},
		{"vmbr0", false, "", ""},
		{"eth0", false, "", ""},
		{"tapi0", false, "", ""},
	}
	for _, c := range cases {
		m := tapNameRe.FindStringSubmatch(c.name)
		if !c.wantMatch {
			assert.Nil(t, m, c.name)
			continue
		}
		if assert.NotNil(t, m, c.name) {
			assert.Equal(t, c.vmid, m[1])
			assert.Equal(t, c.netidx, m[2])
		}
	}
}
