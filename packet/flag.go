package packet

import "strings"

type ControlFlag uint8

const (
	FIN ControlFlag = 0x01 // 000001
	SYN ControlFlag = 0x02 // 000010
	RST ControlFlag = 0x04 // 000100
	PSH ControlFlag = 0x08 // 001000
	ACK ControlFlag = 0x10 // 010000
	URG ControlFlag = 0x20 // 100000
	ECE ControlFlag = 0x40 // 1000000
	CWR ControlFlag = 0x80 // 10000000
)

func (f ControlFlag) String() string {
	var flags []string
	if f.Syn() {
		flags = append(flags, "syn")
	}
	if f.Ack() {
		flags = append(flags, "ack")
	}
	if f.Fin() {
		flags = append(flags, "fin")
	}
	if f.Rst() {
		flags = append(flags, "rst")
	}
	if f.Psh() {
		flags = append(flags, "psh")
	}
	if f.Urg() {
		flags = append(flags, "urg")
	}
	if f.Ece() {
		flags = append(flags, "ece")
	}
	if f.Cwr() {
		flags = append(flags, "cwr")
	}
	return strings.Join(flags, "|")
}

func (f ControlFlag) Fin() bool { return f&FIN != 0 }
func (f ControlFlag) Syn() bool { return f&SYN != 0 }
func (f ControlFlag) Rst() bool { return f&RST != 0 }
func (f ControlFlag) Psh() bool { return f&PSH != 0 }
func (f ControlFlag) Ack() bool { return f&ACK != 0 }
func (f ControlFlag) Urg() bool { return f&URG != 0 }
func (f ControlFlag) Ece() bool { return f&ECE != 0 }
func (f ControlFlag) Cwr() bool { return f&CWR != 0 }
