package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+1 (555) 000-1111", "+15550001111", true},
		{"555.000.1111", "5550001111", true},
		{" +49 170 1234567 ", "+491701234567", true},
		{"12345", "", false},
		{"not a phone", "", false},
		{"+123456789012345678", "", false},
	}

	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.ok {
			require.NoError(t, err, "input %q", tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.Error(t, err, "input %q", tc.in)
		}
	}
}
