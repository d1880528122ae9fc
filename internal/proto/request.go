// Package proto implements the proxy's wire-protocol parser and the
// Request type that carries a parsed client command through the
// scheduler. Grounded on Luit-rcp/parse/parse.go's RESP item scanner,
// generalized from "parse one RESP value" to "parse one whole
// inline/multi-bulk command, splitting pipelined commands apart"
// per spec.md §4.1, and on clientRequest in
// _examples/original_source/src/proxy.c (requestMakeRoomForArgs,
// parseRequest).
package proto

// NoID is the sentinel used for pipeline links that point nowhere.
const NoID = -1

// State is the parser's outcome for a single Request, spec.md §4.1.
type State int

const (
	StateUnknown State = iota
	StateIncomplete
	StateOK
	StateError
)

func (s State) String() string {
	switch s {
	case StateIncomplete:
		return "incomplete"
	case StateOK:
		return "ok"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// framing distinguishes the two wire framings a Request's buffer may use.
type framing int

const (
	framingUnknown framing = iota
	framingInline
	framingMultiBulk
)

// argMinGrow is the amortized growth step for the argument offset/length
// vectors (spec.md §4.1: "resize by current + MIN_SIZE").
const argMinGrow = 10

// Request is one parsed (or still-parsing) client command. Requests live
// in a per-worker arena (see internal/scheduler.Arena): Prev
// and Next are arena slot ids, not pointers, so the pipeline-chain graph
// has no cycles to fix up by hand (spec.md §9 design notes).
type Request struct {
	ID       int
	ClientID uint64

	Raw   []byte // exact bytes of this one command
	State State

	// argOffsets[i]/argLengths[i] index into Raw; argument bytes are
	// never copied out during parsing (spec.md §4.1).
	argOffsets []int
	argLengths []int
	argc       int

	framing framing

	// incremental parse cursor/state fields. Parse does not read or set
	// them (it rescans Raw from byte 0 on every call, see ResetArgs);
	// Reset only zeroes them.
	cursor       int
	wantArgs     int // multi-bulk: total args declared by "*N"
	parsedArgs   int // multi-bulk: args fully parsed so far
	pendingLen   int // multi-bulk: declared length of the arg being read, -1 if not yet known
	readingArg   bool

	// Routing/dispatch state, filled in by internal/scheduler.
	CmdName       []byte
	Unsupported   bool
	UnknownCmd    bool
	Slot          int
	HasSlot       bool
	NodeName      string // resolved shard name, empty until routed
	CrossSlotErr  bool

	WriteCursor     int
	HasWriteHandler bool
	HasReadHandler  bool
	OwnedByClient   bool

	// Retried marks that this request has already been resent once after
	// its upstream connection died mid-flight (spec.md §4.3's
	// reconnect-once policy); a second failure is answered with an error
	// instead of being retried again.
	Retried bool

	Prev int // pipeline predecessor's arena id, or NoID
	Next int // pipeline successor's arena id, or NoID
}

// Reset returns a Request to its post-allocation, pre-parse state so the
// arena can recycle the slot without leaking the previous command's data.
func (r *Request) Reset(id int, clientID uint64) {
	r.ID = id
	r.ClientID = clientID
	r.Raw = r.Raw[:0]
	r.State = StateUnknown
	r.argOffsets = r.argOffsets[:0]
	r.argLengths = r.argLengths[:0]
	r.argc = 0
	r.framing = framingUnknown
	r.cursor = 0
	r.wantArgs = 0
	r.parsedArgs = 0
	r.pendingLen = 0
	r.readingArg = false
	r.CmdName = nil
	r.Unsupported = false
	r.UnknownCmd = false
	r.Slot = 0
	r.HasSlot = false
	r.NodeName = ""
	r.CrossSlotErr = false
	r.WriteCursor = 0
	r.HasWriteHandler = false
	r.HasReadHandler = false
	r.OwnedByClient = false
	r.Retried = false
	r.Prev = NoID
	r.Next = NoID
}

// ResetArgs clears everything Parse has appended so far without
// touching Raw or State. Parse rescans a Request's whole buffer from
// the start on every call (rather than resuming from a saved cursor),
// so a caller that appends more bytes to an incomplete Request's Raw
// and calls Parse again must call ResetArgs first or the rescan will
// append a second, duplicate copy of every argument already parsed.
func (r *Request) ResetArgs() {
	r.argOffsets = r.argOffsets[:0]
	r.argLengths = r.argLengths[:0]
	r.argc = 0
}

// Argc returns the number of parsed arguments.
func (r *Request) Argc() int { return r.argc }

// Arg returns argument i's bytes, a slice into r.Raw.
func (r *Request) Arg(i int) []byte {
	return r.Raw[r.argOffsets[i] : r.argOffsets[i]+r.argLengths[i]]
}

// growArgVectors amortizes offset/length vector growth per spec.md §4.1.
func (r *Request) growArgVectors(minLen int) {
	if cap(r.argOffsets) >= minLen {
		return
	}
	newCap := minLen + argMinGrow
	offs := make([]int, len(r.argOffsets), newCap)
	copy(offs, r.argOffsets)
	lens := make([]int, len(r.argLengths), newCap)
	copy(lens, r.argLengths)
	r.argOffsets, r.argLengths = offs, lens
}

func (r *Request) appendArg(offset, length int) {
	r.growArgVectors(r.argc + 1)
	r.argOffsets = append(r.argOffsets, offset)
	r.argLengths = append(r.argLengths, length)
	r.argc++
}
