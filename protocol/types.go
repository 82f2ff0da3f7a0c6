// protocol/types.go
package protocol

// CommandKind identifies one of the commands the device understands.
type CommandKind int

const (
	CmdSetPower CommandKind = iota + 1
	CmdGetPowerStatus
	CmdGetSerialNumber
)

func (k CommandKind) String() string {
	switch k {
	case CmdSetPower:
		return "setpower"
	case CmdGetPowerStatus:
		return "getpowerstatus"
	case CmdGetSerialNumber:
		return "getserialnumber"
	}
	return "unknown"
}

// Command is a request the client sends to the device. On is only
// meaningful for CmdSetPower.
type Command struct {
	Kind CommandKind
	On   bool
}

func SetPower(on bool) Command { return Command{Kind: CmdSetPower, On: on} }

func GetPowerStatus() Command { return Command{Kind: CmdGetPowerStatus} }

func GetSerialNumber() Command { return Command{Kind: CmdGetSerialNumber} }

// Status is the shape of a decoded reply.
type Status int

const (
	StatusOK Status = iota
	StatusErr
	StatusMalformed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusErr:
		return "err"
	}
	return "malformed"
}

// ErrorKind is the category of a device-reported error.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindInvalidValue
	KindMissingParameter
	KindInvalidParameter
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidValue:
		return "invalid value"
	case KindMissingParameter:
		return "missing parameter"
	case KindInvalidParameter:
		return "invalid parameter"
	}
	return "generic error"
}

// Response is a reply decoded from the wire, or built by the simulator
// before encoding. Kind is only meaningful when Status is StatusErr.
type Response struct {
	Status  Status
	Payload string
	Kind    ErrorKind
}

func OK(payload string) Response { return Response{Status: StatusOK, Payload: payload} }

func Err(kind ErrorKind) Response { return Response{Status: StatusErr, Kind: kind} }

// Request is a command line as understood by the device. When Rejected is
// set, Command is zero and Kind says which error the device answers with.
type Request struct {
	Command  Command
	Rejected bool
	Kind     ErrorKind
}
