// Package device implements the command/acknowledge protocol spoken by the
// two enclosure microcontrollers, the numeric sensor reads layered on top of
// it, and idempotent actuator control.
package device

import "sort"

// Link A commands (climate board).
const (
	CmdReadTemperature = 0
	CmdReadHumidity    = 1
	CmdReadMoisture    = 2
	CmdDisplayClimate  = 3
	CmdFanOn           = 4
	CmdFanOff          = 5
	CmdPumpOn          = 6
	CmdPumpOff         = 7
)

// Link B commands (soil and mechanics board).
const (
	CmdReadNitrogen   = 100
	CmdReadPhosphorus = 101
	CmdReadPotassium  = 102
	CmdDisplayNPK     = 103
	CmdStepperStart   = 104
	CmdStepperStop    = 105
	CmdHatchOpen      = 106
	CmdHatchClose     = 107
	CmdDCMotorStart   = 108
	CmdDCMotorStop    = 109
)

// Commands understood by both boards.
const (
	CmdIdentify = 98
	CmdReset    = 99
)

// AckToken is the line a board sends once a command has been executed.
const AckToken = "ok"

// Vocabulary is the set of command codes a link accepts.
type Vocabulary map[int]struct{}

// NewVocabulary builds a vocabulary from the given codes.
func NewVocabulary(codes ...int) Vocabulary {
	v := make(Vocabulary, len(codes))
	for _, c := range codes {
		v[c] = struct{}{}
	}
	return v
}

// Contains reports whether cmd belongs to the vocabulary.
func (v Vocabulary) Contains(cmd int) bool {
	_, ok := v[cmd]
	return ok
}

// Codes returns the vocabulary in ascending order.
func (v Vocabulary) Codes() []int {
	out := make([]int, 0, len(v))
	for c := range v {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func codeRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for c := from; c <= to; c++ {
		out = append(out, c)
	}
	return out
}

// Link names a serial link and the commands it accepts.
type Link struct {
	Name     string
	Commands Vocabulary
}

var (
	LinkA = Link{Name: "link-a", Commands: NewVocabulary(append(codeRange(0, 7), CmdIdentify, CmdReset)...)}
	LinkB = Link{Name: "link-b", Commands: NewVocabulary(append(codeRange(100, 109), CmdIdentify, CmdReset)...)}
)
