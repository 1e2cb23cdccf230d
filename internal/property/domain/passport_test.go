package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassportIDFormat(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := PassportID("tx", "78701-1234", RandomPassportNumber())
		assert.Regexp(t, `^TX-78701-[1-9][0-9]{4}$`, id)
	}
}

func TestPassportIDEdgeCases(t *testing.T) {
	cases := []struct {
		state, zip string
		n          int
		want       string
	}{
		{"t", "787", 12345, "T-787-12345"},
		{"texas", "78701", 10000, "TE-78701-10000"},
		{"", "78701", 99999, "78701-99999"},
		{"ca", "", 54321, "CA-54321"},
		{"ny", "ab-12", 11111, "NY-12-11111"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PassportID(tc.state, tc.zip, tc.n))
	}
}

func TestRandomPassportNumberRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n := RandomPassportNumber()
		assert.GreaterOrEqual(t, n, 10000)
		assert.Less(t, n, 100000)
	}
}
