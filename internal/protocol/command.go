package protocol

// Command is the name carried in argument 0 of a request frame.
type Command string

const (
	CmdPwd Command = "pwd"
	CmdDir Command = "dir"
	CmdCd  Command = "cd"
	CmdGet Command = "get"
	CmdPut Command = "put"
)

// Known reports whether the server has a handler for c.
func (c Command) Known() bool {
	switch c {
	case CmdPwd, CmdDir, CmdCd, CmdGet, CmdPut:
		return true
	}
	return false
}

// MinArgs returns how many arguments c needs besides its own name.
func (c Command) MinArgs() int {
	switch c {
	case CmdCd, CmdGet, CmdPut:
		return 1
	}
	return 0
}

func (c Command) String() string { return string(c) }

// Outcome is the 16-bit flag that precedes a get response.
type Outcome uint16

const (
	OutcomeFailure Outcome = 0
	OutcomeSuccess Outcome = 1
)

func (o Outcome) OK() bool { return o == OutcomeSuccess }

func (o Outcome) String() string {
	if o.OK() {
		return "success"
	}
	return "failure"
}
