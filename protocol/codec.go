// protocol/codec.go
package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// CommandTerminator ends every line sent to the device.
	CommandTerminator = "\r"
	// ResponseTerminator ends every line the device sends back.
	ResponseTerminator = "\r\n"
)

// Literal error bodies sent by the device.
const (
	errInvalidValue     = `err "Invalid Value"`
	errMissingParameter = `err "Missing Parameter"`
	errInvalidParameter = `err "Invalid Parameter"`
	errGeneric          = "err"
)

var setPowerPattern = regexp.MustCompile(`setpower on ([^ |\r\n]*)`)

// Body renders the command as it appears on the wire, without terminator.
func (c Command) Body() string {
	switch c.Kind {
	case CmdSetPower:
		if c.On {
			return "setpower on 1"
		}
		return "setpower on 0"
	case CmdGetPowerStatus:
		return "getpowerstatus"
	case CmdGetSerialNumber:
		return "getserialnumber"
	}
	return ""
}

func (c Command) String() string { return c.Body() }

// Encode returns the bytes written for c: its body followed by a single CR.
func Encode(c Command) []byte {
	return []byte(c.Body() + CommandTerminator)
}

// DecodeResponse classifies a reply body with its CRLF already stripped.
// It never fails: anything that is neither ok nor err is StatusMalformed.
func DecodeResponse(body string) Response {
	if len(body) >= 2 && strings.EqualFold(body[:2], "ok") {
		return OK(strings.TrimSpace(body[2:]))
	}
	if strings.HasPrefix(body, errGeneric) {
		switch body {
		case errInvalidValue:
			return Err(KindInvalidValue)
		case errMissingParameter:
			return Err(KindMissingParameter)
		case errInvalidParameter:
			return Err(KindInvalidParameter)
		}
		return Err(KindGeneric)
	}
	return Response{Status: StatusMalformed}
}

// ResponseBody renders r without framing, e.g. "ok on 1" or
// `err "Invalid Value"`. A malformed response has no body.
func ResponseBody(r Response) string {
	switch r.Status {
	case StatusOK:
		if r.Payload == "" {
			return "ok"
		}
		return "ok " + r.Payload
	case StatusErr:
		switch r.Kind {
		case KindInvalidValue:
			return errInvalidValue
		case KindMissingParameter:
			return errMissingParameter
		case KindInvalidParameter:
			return errInvalidParameter
		}
		return errGeneric
	}
	return ""
}

// EncodeResponse frames r for the wire. With leadingBlank set the body is
// preceded by an empty CRLF line, which is how the hardware replies.
func EncodeResponse(r Response, leadingBlank bool) []byte {
	var sb strings.Builder
	if leadingBlank {
		sb.WriteString(ResponseTerminator)
	}
	sb.WriteString(ResponseBody(r))
	sb.WriteString(ResponseTerminator)
	return []byte(sb.String())
}

// ParseRequest matches a command line, CR already stripped, against the
// device grammar. It never fails: unknown lines are rejected requests.
func ParseRequest(body string) Request {
	switch body {
	case "getserialnumber":
		return Request{Command: GetSerialNumber()}
	case "getpowerstatus":
		return Request{Command: GetPowerStatus()}
	case "setmute":
		// The device answers a bare setmute with Missing Parameter even
		// though it has no mute command.
		return reject(KindMissingParameter)
	}

	if len(body) >= len("setpower") && strings.EqualFold(body[:len("setpower")], "setpower") {
		m := setPowerPattern.FindStringSubmatch(body)
		if m == nil {
			return reject(KindInvalidParameter)
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return reject(KindInvalidValue)
		}
		switch v {
		case 1:
			return Request{Command: SetPower(true)}
		case 0:
			return Request{Command: SetPower(false)}
		}
		return reject(KindInvalidValue)
	}

	return reject(KindGeneric)
}

func reject(kind ErrorKind) Request {
	return Request{Rejected: true, Kind: kind}
}

// TrimFrame strips a trailing CRLF or CR from a raw line.
func TrimFrame(raw string) string {
	raw = strings.TrimSuffix(raw, "\n")
	return strings.TrimSuffix(raw, "\r")
}
