package tor

import "encoding/hex"

// AuthChallengeResponse is the parsed form of an AUTHCHALLENGE reply, sent
// by the daemon as the first step of the SAFECOOKIE authentication
// handshake.
type AuthChallengeResponse struct {
	ServerHash  []byte
	ServerNonce []byte
}

// ParseAuthChallenge parses a completed AUTHCHALLENGE reply of the form
// "250 AUTHCHALLENGE SERVERHASH=<hex> SERVERNONCE=<hex>".
func ParseAuthChallenge(msg *ReplyMessage) (*AuthChallengeResponse, error) {
	if len(msg.Lines()) == 0 {
		return nil, NewProtocolError("empty AUTHCHALLENGE reply")
	}

	c := NewParsedLineCursor(msg.Lines()[0].Content)
	first, err := c.Pop(false, false)
	if err != nil || first != "AUTHCHALLENGE" {
		return nil, NewProtocolError("reply is not an AUTHCHALLENGE response")
	}

	resp := &AuthChallengeResponse{}
	for {
		key, ok := c.PeekKey()
		if !ok {
			break
		}
		_, value, err := c.PopMapping(false, false)
		if err != nil {
			return nil, err
		}

		switch key {
		case "SERVERHASH":
			decoded, err := hex.DecodeString(value)
			if err != nil {
				return nil, NewAuthChallengeFailed(
					"unable to decode SERVERHASH: " + err.Error(),
				)
			}
			resp.ServerHash = decoded
		case "SERVERNONCE":
			decoded, err := hex.DecodeString(value)
			if err != nil {
				return nil, NewAuthChallengeFailed(
					"unable to decode SERVERNONCE: " + err.Error(),
				)
			}
			resp.ServerNonce = decoded
		}
	}

	if resp.ServerHash == nil {
		return nil, NewAuthChallengeFailed("reply missing SERVERHASH")
	}
	if resp.ServerNonce == nil {
		return nil, NewAuthChallengeFailed("reply missing SERVERNONCE")
	}

	return resp, nil
}
