package tor

import "strings"

// MapAddressResponse is the parsed form of a successful (or partially
// successful) MAPADDRESS reply: old-address to new-address pairs.
type MapAddressResponse struct {
	Mapped map[string]string
}

// MapAddressError is returned by ParseMapAddress when at least one
// requested mapping failed. Per the Open Question decision recorded in
// SPEC_FULL.md §5(a), every mapping that succeeded is still returned in
// Response rather than the whole call failing.
type MapAddressError struct {
	baseError

	Response *MapAddressResponse
	Failed   map[string]string // failed original address -> error text
}

// ParseMapAddress parses a completed MAPADDRESS reply. Lines are of the
// form "old-address=new-address" on success; a line reporting an error for
// one entry carries a non-250 code while sibling entries may still be 250.
func ParseMapAddress(msg *ReplyMessage) (*MapAddressResponse, error) {
	resp := &MapAddressResponse{Mapped: make(map[string]string)}
	failed := make(map[string]string)

	for _, line := range msg.Lines() {
		if line.Content == "OK" {
			continue
		}

		old, new, ok := strings.Cut(line.Content, "=")
		if !ok {
			// Not a mapping line (e.g. a bare error message); treat
			// the whole content as the error text, keyed by itself.
			failed[line.Content] = line.Content
			continue
		}

		if line.Code == success {
			resp.Mapped[old] = new
		} else {
			failed[old] = new
		}
	}

	if len(failed) > 0 {
		return resp, &MapAddressError{
			baseError: newBaseError(msg.Code(), "one or more address mappings failed"),
			Response:  resp,
			Failed:    failed,
		}
	}

	return resp, nil
}
