package tor

import "strings"

// GetConfResponse is the parsed form of a GETCONF reply. A configuration
// option may be set multiple times (e.g. multiple ORPort lines), so every
// value is kept as a slice in reply order.
type GetConfResponse struct {
	Values map[string][]string
}

// Get returns the first value set for a configuration option, if any.
func (r *GetConfResponse) Get(key string) (string, bool) {
	vs, ok := r.Values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// GetAll returns every value set for a configuration option, in reply
// order.
func (r *GetConfResponse) GetAll(key string) []string {
	return r.Values[key]
}

// ParseGetConf parses a completed GETCONF reply against the keys that were
// actually requested, per spec.md §4.4. An option present in the reply
// with no "=" value is recorded with an empty string so its presence is
// still observable. A key in the reply the caller didn't ask for is a
// protocol error, and a 552 reply raises InvalidArguments naming exactly
// the requested keys missing from the response.
func ParseGetConf(msg *ReplyMessage, requestedKeys []string) (*GetConfResponse, error) {
	resp := &GetConfResponse{Values: make(map[string][]string)}

	requested := make(map[string]bool, len(requestedKeys))
	for _, k := range requestedKeys {
		requested[k] = true
	}

	for _, line := range msg.Lines() {
		if line.Content == "OK" || line.Code != success {
			continue
		}

		key, value, ok := strings.Cut(line.Content, "=")
		if !ok {
			key = line.Content
			value = ""
		}
		if len(requested) > 0 && !requested[key] {
			return nil, NewProtocolError(
				"GETCONF reply included unrequested key %q", key,
			)
		}
		resp.Values[key] = append(resp.Values[key], value)
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
