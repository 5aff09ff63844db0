package trace

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Binary layout: every record is RecordSize bytes, little endian. The first
// HeaderSize bytes are int8 type, int8 cpu, int16 pid, int32 job; the payload
// follows and is zero padded to the record size.
const (
	RecordSize = 24
	HeaderSize = 8
)

// Type is the record type code stored in the header.
type Type int8

const (
	EvName Type = iota + 1
	EvParams
	EvRelease
	EvAssign
	EvSwitchTo
	EvSwitchAway
	EvCompletion
	EvBlock
	EvResume
	EvAction
	EvSysRelease
)

var typeNames = [...]string{
	EvName:       "name",
	EvParams:     "params",
	EvRelease:    "release",
	EvAssign:     "assign",
	EvSwitchTo:   "switch_to",
	EvSwitchAway: "switch_away",
	EvCompletion: "completion",
	EvBlock:      "block",
	EvResume:     "resume",
	EvAction:     "action",
	EvSysRelease: "sys_release",
}

// Valid reports whether t is one of the eleven known type codes.
func (t Type) Valid() bool {
	return t >= EvName && t <= EvSysRelease
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("type(%d)", int8(t))
	}
	return typeNames[t]
}

// timed reports whether records of this type start their payload with a
// uint64 timestamp.
func (t Type) timed() bool {
	return t != EvName && t != EvParams
}

// Payload is the type-specific part of an event. The set of implementations
// is closed: one per type code.
type Payload interface {
	Type() Type
	// get and put operate on the bytes after the timestamp (or after the
	// header, for untimed types).
	get(b []byte)
	put(b []byte)
}

// Name carries the executable name of a task.
type Name struct {
	Name [16]byte
}

func (p *Name) Type() Type     { return EvName }
func (p *Name) get(b []byte)   { copy(p.Name[:], b[:16]) }
func (p *Name) put(b []byte)   { copy(b[:16], p.Name[:]) }
func (p *Name) String() string { return string(bytes.TrimRight(p.Name[:], "\x00")) }

// Params carries the task parameters. Partition is the raw partition byte as
// an unsigned ordinal.
type Params struct {
	WCET      uint32
	Period    uint32
	Phase     uint32
	Partition uint8
}

func (p *Params) Type() Type { return EvParams }
func (p *Params) get(b []byte) {
	p.WCET = binary.LittleEndian.Uint32(b[0:])
	p.Period = binary.LittleEndian.Uint32(b[4:])
	p.Phase = binary.LittleEndian.Uint32(b[8:])
	p.Partition = b[12]
}
func (p *Params) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], p.WCET)
	binary.LittleEndian.PutUint32(b[4:], p.Period)
	binary.LittleEndian.PutUint32(b[8:], p.Phase)
	b[12] = p.Partition
}

// Release announces a job release and its absolute deadline.
type Release struct {
	Deadline uint64
}

func (p *Release) Type() Type   { return EvRelease }
func (p *Release) get(b []byte) { p.Deadline = binary.LittleEndian.Uint64(b) }
func (p *Release) put(b []byte) { binary.LittleEndian.PutUint64(b, p.Deadline) }

// Assign is reserved; instrumented kernels do not produce it yet.
type Assign struct {
	Target uint8
}

func (p *Assign) Type() Type   { return EvAssign }
func (p *Assign) get(b []byte) { p.Target = b[0] }
func (p *Assign) put(b []byte) { b[0] = p.Target }

type SwitchTo struct {
	ExecTime uint32
}

func (p *SwitchTo) Type() Type   { return EvSwitchTo }
func (p *SwitchTo) get(b []byte) { p.ExecTime = binary.LittleEndian.Uint32(b) }
func (p *SwitchTo) put(b []byte) { binary.LittleEndian.PutUint32(b, p.ExecTime) }

type SwitchAway struct {
	ExecTime uint32
}

func (p *SwitchAway) Type() Type   { return EvSwitchAway }
func (p *SwitchAway) get(b []byte) { p.ExecTime = binary.LittleEndian.Uint32(b) }
func (p *SwitchAway) put(b []byte) { binary.LittleEndian.PutUint32(b, p.ExecTime) }

// Completion follows the timestamp with three padding bytes.
type Completion struct {
	Forced uint8
	Flags  uint8
}

func (p *Completion) Type() Type { return EvCompletion }
func (p *Completion) get(b []byte) {
	p.Forced = b[3]
	p.Flags = b[4]
}
func (p *Completion) put(b []byte) {
	b[3] = p.Forced
	b[4] = p.Flags
}

type Block struct{}

func (p *Block) Type() Type { return EvBlock }
func (p *Block) get([]byte) {}
func (p *Block) put([]byte) {}

type Resume struct{}

func (p *Resume) Type() Type { return EvResume }
func (p *Resume) get([]byte) {}
func (p *Resume) put([]byte) {}

type Action struct {
	Action int8
}

func (p *Action) Type() Type   { return EvAction }
func (p *Action) get(b []byte) { p.Action = int8(b[0]) }
func (p *Action) put(b []byte) { b[0] = byte(p.Action) }

// SysRelease marks the release of the whole task system.
type SysRelease struct {
	Release uint64
}

func (p *SysRelease) Type() Type   { return EvSysRelease }
func (p *SysRelease) get(b []byte) { p.Release = binary.LittleEndian.Uint64(b) }
func (p *SysRelease) put(b []byte) { binary.LittleEndian.PutUint64(b, p.Release) }

func newPayload(t Type) Payload {
	switch t {
	case EvName:
		return &Name{}
	case EvParams:
		return &Params{}
	case EvRelease:
		return &Release{}
	case EvAssign:
		return &Assign{}
	case EvSwitchTo:
		return &SwitchTo{}
	case EvSwitchAway:
		return &SwitchAway{}
	case EvCompletion:
		return &Completion{}
	case EvBlock:
		return &Block{}
	case EvResume:
		return &Resume{}
	case EvAction:
		return &Action{}
	case EvSysRelease:
		return &SysRelease{}
	default:
		return nil
	}
}

// ErrShortRecord is returned by Decode when fewer than RecordSize bytes are given.
var ErrShortRecord = errors.New("short trace record")

// InvalidTypeError reports a header whose type code is outside [1,11].
type InvalidTypeError struct {
	Code int8
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid record type code %d", e.Code)
}

// Decode parses one record from the first RecordSize bytes of b.
func Decode(b []byte) (*Event, error) {
	if len(b) < RecordSize {
		return nil, ErrShortRecord
	}
	h := Header{
		Type: Type(int8(b[0])),
		CPU:  int8(b[1]),
		PID:  int16(binary.LittleEndian.Uint16(b[2:])),
		Job:  int32(binary.LittleEndian.Uint32(b[4:])),
	}
	if !h.Type.Valid() {
		return nil, &InvalidTypeError{Code: int8(h.Type)}
	}
	ev := &Event{Header: h, Payload: newPayload(h.Type)}
	body := b[HeaderSize:RecordSize]
	if h.Type.timed() {
		ev.When = binary.LittleEndian.Uint64(body)
		body = body[8:]
	}
	ev.Payload.get(body)
	return ev, nil
}

// Encode renders e in the binary layout. The header type code is taken from
// the payload. It panics if e has no payload.
func Encode(e *Event) []byte {
	if e.Payload == nil {
		panic("Encode: event has no payload")
	}
	b := make([]byte, RecordSize)
	t := e.Payload.Type()
	b[0] = byte(t)
	b[1] = byte(e.CPU)
	binary.LittleEndian.PutUint16(b[2:], uint16(e.PID))
	binary.LittleEndian.PutUint32(b[4:], uint32(e.Job))
	body := b[HeaderSize:]
	if t.timed() {
		binary.LittleEndian.PutUint64(body, e.When)
		body = body[8:]
	}
	e.Payload.put(body)
	return b
}
