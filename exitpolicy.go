package tor

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// AddressType classifies the address portion of an exit policy rule.
type AddressType int

// Documented AddressType values, from stem.exit_policy.AddressType.
const (
	AddressTypeWildcard AddressType = iota
	AddressTypeIPv4
	AddressTypeIPv6
)

// ExitPolicyRule is a single accept/reject line of an exit policy, such as
// "accept 18.0.0.0/8:80" or "reject *:25". Ported in semantics (not
// syntax) from stem.exit_policy.ExitPolicyRule.
type ExitPolicyRule struct {
	IsAccept bool

	AddressType AddressType
	Address     string // "*" for a wildcard
	mask        net.IPMask
	ipNet       *net.IPNet

	MinPort int
	MaxPort int
}

// ParseExitPolicyRule parses a single torrc-style exit policy line.
func ParseExitPolicyRule(rule string) (*ExitPolicyRule, error) {
	fields := strings.Fields(strings.TrimSpace(rule))
	if len(fields) != 2 {
		return nil, NewProtocolError("malformed exit policy rule: %q", rule)
	}

	var isAccept bool
	switch strings.ToLower(fields[0]) {
	case "accept":
		isAccept = true
	case "reject":
		isAccept = false
	default:
		return nil, NewProtocolError("exit policy rule must start with "+
			"accept/reject: %q", rule)
	}

	addrPart, portPart, ok := strings.Cut(fields[1], ":")
	if !ok {
		return nil, NewProtocolError("exit policy rule missing a port "+
			"field: %q", rule)
	}

	r := &ExitPolicyRule{IsAccept: isAccept}

	if addrPart == "*" {
		r.AddressType = AddressTypeWildcard
		r.Address = "*"
	} else {
		ip, ipNet, err := parseAddressSpec(addrPart)
		if err != nil {
			return nil, err
		}
		r.Address = addrPart
		r.ipNet = ipNet
		if ip.To4() != nil {
			r.AddressType = AddressTypeIPv4
		} else {
			r.AddressType = AddressTypeIPv6
		}
	}

	minPort, maxPort, err := parsePortSpec(portPart)
	if err != nil {
		return nil, err
	}
	r.MinPort, r.MaxPort = minPort, maxPort

	return r, nil
}

// parseAddressSpec parses "a.b.c.d", "a.b.c.d/mask", or a bare IPv6
// address/prefix into a concrete net.IPNet covering it.
func parseAddressSpec(spec string) (net.IP, *net.IPNet, error) {
	if strings.Contains(spec, "/") {
		ip, ipNet, err := net.ParseCIDR(spec)
		if err != nil {
			return nil, nil, NewProtocolError(
				"invalid exit policy address %q: %v", spec, err,
			)
		}
		return ip, ipNet, nil
	}

	ip := net.ParseIP(spec)
	if ip == nil {
		return nil, nil, NewProtocolError("invalid exit policy address %q", spec)
	}

	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	mask := net.CIDRMask(bits, bits)
	return ip, &net.IPNet{IP: ip.Mask(mask), Mask: mask}, nil
}

// parsePortSpec parses "80", "80-443", or "*" into an inclusive
// [min, max] port range.
func parsePortSpec(spec string) (int, int, error) {
	if spec == "*" {
		return 1, 65535, nil
	}

	lo, hi, ok := strings.Cut(spec, "-")
	minPort, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, NewProtocolError("invalid exit policy port %q", spec)
	}
	if !ok {
		return minPort, minPort, nil
	}
	maxPort, err := strconv.Atoi(hi)
	if err != nil {
		return 0, 0, NewProtocolError("invalid exit policy port %q", spec)
	}
	return minPort, maxPort, nil
}

// IsMatch reports whether this rule applies to the given address and port.
// An empty address only matches the port range.
func (r *ExitPolicyRule) IsMatch(address string, port int) bool {
	if port < r.MinPort || port > r.MaxPort {
		return false
	}
	if r.AddressType == AddressTypeWildcard || address == "" {
		return true
	}

	ip := net.ParseIP(address)
	if ip == nil || r.ipNet == nil {
		return false
	}
	return r.ipNet.Contains(ip)
}

// String renders the rule back to its torrc-style form.
func (r *ExitPolicyRule) String() string {
	verb := "reject"
	if r.IsAccept {
		verb = "accept"
	}

	portStr := strconv.Itoa(r.MinPort)
	if r.MinPort == 1 && r.MaxPort == 65535 {
		portStr = "*"
	} else if r.MinPort != r.MaxPort {
		portStr = fmt.Sprintf("%d-%d", r.MinPort, r.MaxPort)
	}

	return fmt.Sprintf("%s %s:%s", verb, r.Address, portStr)
}

// ExitPolicy is an ordered list of ExitPolicyRule values, evaluated
// first-match-wins, with an implicit "accept *:*" if no rule matches (the
// default Tor exit policy behavior when a torrc doesn't end with an
// explicit reject-all).
type ExitPolicy struct {
	Rules []*ExitPolicyRule
}

// NewExitPolicy builds an ExitPolicy from a sequence of torrc-style rule
// lines.
func NewExitPolicy(rules ...string) (*ExitPolicy, error) {
	policy := &ExitPolicy{}
	for _, rule := range rules {
		r, err := ParseExitPolicyRule(rule)
		if err != nil {
			return nil, err
		}
		policy.Rules = append(policy.Rules, r)
	}
	return policy, nil
}

// CanExitTo reports whether traffic to the given address and port is
// allowed by the first matching rule, defaulting to allowed if no rule
// matches.
func (p *ExitPolicy) CanExitTo(address string, port int) bool {
	for _, r := range p.Rules {
		if r.IsMatch(address, port) {
			return r.IsAccept
		}
	}
	return true
}

// IsExitingAllowed reports whether this policy permits exiting to any
// remote address at all (as opposed to a relay configured as a pure
// middle/guard relay with "reject *:*" as its only rule).
func (p *ExitPolicy) IsExitingAllowed() bool {
	for _, r := range p.Rules {
		if r.IsAccept {
			return true
		}
	}
	return len(p.Rules) == 0
}

// Summary renders a compact description of the policy from its
// wildcard-address rules: if any of them accepts, the accepted ports
// ("accept 80, 443"); otherwise the rejected ports ("reject 1-1024"); with
// no wildcard rules at all, "reject *:*". Rules for a specific address are
// ignored, and the choice between the two lists does not depend on which is
// shorter.
func (p *ExitPolicy) Summary() string {
	var accepted, rejected []string

	for _, r := range p.Rules {
		if r.AddressType != AddressTypeWildcard {
			continue
		}
		portStr := strconv.Itoa(r.MinPort)
		if r.MinPort != r.MaxPort {
			portStr = fmt.Sprintf("%d-%d", r.MinPort, r.MaxPort)
		}
		if r.IsAccept {
			accepted = append(accepted, portStr)
		} else {
			rejected = append(rejected, portStr)
		}
	}

	if len(accepted) > 0 {
		return "accept " + strings.Join(accepted, ", ")
	}
	if len(rejected) > 0 {
		return "reject " + strings.Join(rejected, ", ")
	}
	return "reject *:*"
}

// MicroExitPolicyRule is a single entry of a MicrodescriptorExitPolicy: a
// port or port range with no address component, since microdescriptors
// only ever constrain ports.
type MicroExitPolicyRule struct {
	MinPort int
	MaxPort int
}

// IsMatch reports whether the given port falls in this rule's range.
func (r MicroExitPolicyRule) IsMatch(port int) bool {
	return port >= r.MinPort && port <= r.MaxPort
}

// MicrodescriptorExitPolicy is the distilled "accept 80,443" or
// "reject 1-1024" port-list-only policy format used by microdescriptors,
// ported from stem.exit_policy.MicrodescriptorExitPolicy.
type MicrodescriptorExitPolicy struct {
	IsAccept bool
	Rules    []MicroExitPolicyRule
}

// ParseMicrodescriptorExitPolicy parses a microdescriptor policy line such
// as "accept 80,443" or "reject 1-1024,8080".
func ParseMicrodescriptorExitPolicy(line string) (*MicrodescriptorExitPolicy, error) {
	verb, portsStr, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return nil, NewProtocolError("malformed microdescriptor exit "+
			"policy: %q", line)
	}

	var isAccept bool
	switch strings.ToLower(verb) {
	case "accept":
		isAccept = true
	case "reject":
		isAccept = false
	default:
		return nil, NewProtocolError("microdescriptor exit policy must "+
			"start with accept/reject: %q", line)
	}

	policy := &MicrodescriptorExitPolicy{IsAccept: isAccept}
	for _, portRange := range strings.Split(portsStr, ",") {
		minPort, maxPort, err := parsePortSpec(portRange)
		if err != nil {
			return nil, err
		}
		policy.Rules = append(policy.Rules, MicroExitPolicyRule{minPort, maxPort})
	}

	return policy, nil
}

// CanExitTo reports whether this policy permits exiting to the given port.
func (p *MicrodescriptorExitPolicy) CanExitTo(port int) bool {
	for _, r := range p.Rules {
		if r.IsMatch(port) {
			return p.IsAccept
		}
	}
	return !p.IsAccept
}
