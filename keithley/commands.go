package keithley

/*
Command set for the Keithley 6482 dual-channel picoammeter. See the 6482
reference manual for the SCPI tree; only the subset this driver needs is
carried here.
*/

// Command is a tag for one SCPI fragment from the fixed command set. The
// literal wire text lives in commandText; Text is the single point where a
// tag becomes bytes on the wire.
type Command int

const (
	CmdFormat Command = iota
	CmdRangeChannel1
	CmdRangeChannel2
	CmdAutoRangeChannel1
	CmdAutoRangeChannel2
	CmdSpeed
	CmdAutozeroOn
	CmdAutozeroOff
	CmdSweeps
	CmdReset
	CmdReadCurrent
	CmdIdentify
	CmdFilterCount
	CmdFilterOn
	CmdFilterOff
	CmdFilterNoiseWindow
	CmdAdvancedFilterOn
	CmdAdvancedFilterOff
)

var commandText = map[Command]string{
	CmdFormat:            ":FORMat:ELEMents",
	CmdRangeChannel1:     ":SENSe1:CURRent:RANGe",
	CmdRangeChannel2:     ":SENSe2:CURRent:RANGe",
	CmdAutoRangeChannel1: ":SENSe1:CURRent:RANGe:AUTO 1",
	CmdAutoRangeChannel2: ":SENSe2:CURRent:RANGe:AUTO 1",
	CmdSpeed:             ":SENSe:CURRent:NPLCycles",
	CmdAutozeroOn:        ":SYST:AZER ON",
	CmdAutozeroOff:       ":SYST:AZER OFF",
	CmdSweeps:            ":ARM:SEQuence:LAYer:COUNt",
	CmdReset:             "*RST",
	CmdReadCurrent:       "READ?",
	CmdIdentify:          "*IDN?",
	// Filter tree, average mode only. See 4-11 of the reference manual.
	CmdFilterCount:       ":AVER:COUN",
	CmdFilterOn:          ":AVER ON",
	CmdFilterOff:         ":AVER OFF",
	CmdFilterNoiseWindow: ":AVER:ADV:NTO",
	CmdAdvancedFilterOn:  "AVER:ADV ON",
	CmdAdvancedFilterOff: "AVER:ADV OFF",
}

// Text renders the command to its literal SCPI form.
func (c Command) Text() string {
	return commandText[c]
}
