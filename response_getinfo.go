package tor

import "strings"

// GetInfoResponse is the parsed form of a GETINFO reply: one value per
// requested key, with multi-line data blocks already joined with "\n".
type GetInfoResponse struct {
	Values map[string]string
}

// Get returns the value for a requested key and whether it was present in
// the reply.
func (r *GetInfoResponse) Get(key string) (string, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// ParseGetInfo parses a completed GETINFO reply against the keys that were
// actually requested, per spec.md §4.4: a key in the reply the caller
// didn't ask for is a protocol error, and a 552 reply naming unrecognized
// keys raises InvalidArguments naming exactly the requested keys missing
// from the response.
func ParseGetInfo(msg *ReplyMessage, requestedKeys []string) (*GetInfoResponse, error) {
	resp := &GetInfoResponse{Values: make(map[string]string)}

	requested := make(map[string]bool, len(requestedKeys))
	for _, k := range requestedKeys {
		requested[k] = true
	}

	for _, line := range msg.Lines() {
		if line.Content == "OK" {
			continue
		}

		key, value, ok := strings.Cut(line.Content, "=")
		if !ok {
			continue
		}
		if len(requested) > 0 && !requested[key] {
			return nil, NewProtocolError(
				"GETINFO reply included unrequested key %q", key,
			)
		}
		resp.Values[key] = value
	}

	if msg.Code() == codeUnrecognizedEntity {
		var missing []string
		for _, k := range requestedKeys {
			if _, ok := resp.Values[k]; !ok {
				missing = append(missing, k)
			}
		}
		return resp, NewInvalidArgumentsError(msg.Code(), msg.Raw(), missing)
	}

	return resp, nil
}
