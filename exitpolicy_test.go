package tor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitPolicyRuleIsMatch(t *testing.T) {
	r, err := ParseExitPolicyRule("accept 18.0.0.0/8:80")
	require.NoError(t, err)

	require.True(t, r.IsMatch("18.1.2.3", 80))
	require.False(t, r.IsMatch("19.1.2.3", 80))
	require.False(t, r.IsMatch("18.1.2.3", 443))
}

func TestExitPolicyFirstMatchWins(t *testing.T) {
	p, err := NewExitPolicy(
		"reject 1.2.3.4:*",
		"accept *:80",
		"reject *:*",
	)
	require.NoError(t, err)

	require.False(t, p.CanExitTo("1.2.3.4", 80))
	require.True(t, p.CanExitTo("5.6.7.8", 80))
	require.False(t, p.CanExitTo("5.6.7.8", 443))
}

func TestExitPolicyDefaultAllow(t *testing.T) {
	p := &ExitPolicy{}
	require.True(t, p.CanExitTo("1.2.3.4", 80))
	require.True(t, p.IsExitingAllowed())
}

func TestExitPolicyIsExitingAllowed(t *testing.T) {
	p, err := NewExitPolicy("reject *:*")
	require.NoError(t, err)
	require.False(t, p.IsExitingAllowed())
}

func TestExitPolicySummary(t *testing.T) {
	p, err := NewExitPolicy(
		"accept *:80",
		"accept *:443",
		"reject *:*",
	)
	require.NoError(t, err)
	require.Equal(t, "accept 80, 443", p.Summary())
}

func TestMicrodescriptorExitPolicy(t *testing.T) {
	p, err := ParseMicrodescriptorExitPolicy("accept 80,443,8080-8090")
	require.NoError(t, err)

	require.True(t, p.CanExitTo(80))
	require.True(t, p.CanExitTo(8085))
	require.False(t, p.CanExitTo(22))
}

func TestExitPolicyRuleStringRoundTrip(t *testing.T) {
	for _, rule := range []string{
		"accept *:*",
		"reject 1.2.3.4:80",
		"accept 5.6.7.8:1-1024",
	} {
		r, err := ParseExitPolicyRule(rule)
		require.NoError(t, err)

		r2, err := ParseExitPolicyRule(r.String())
		require.NoError(t, err)
		require.Equal(t, r.IsAccept, r2.IsAccept)
		require.Equal(t, r.MinPort, r2.MinPort)
		require.Equal(t, r.MaxPort, r2.MaxPort)
	}
}
