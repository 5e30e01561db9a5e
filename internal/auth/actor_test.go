package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/token-authority/internal/auth"
)

func TestNormalizeActor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"  Alice  ", "alice"},
		{"BILLING-GATEWAY", "billing-gateway"},
		{"\tMixed Case\n", "mixed case"},
		{"   ", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, auth.NormalizeActor(tc.in), tc.in)
	}
}
