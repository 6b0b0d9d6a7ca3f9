package hostcall

import (
	"github.com/probeum/jampvm/core/vm"
	"github.com/probeum/jampvm/params"
)

// Handler is one entry in the host-call registry: it runs against a
// shared Context and returns the out-of-band status the driver acts
// on.
type Handler func(ctx *Context) vm.Status

// Dispatcher maps a host-trap function id to its Handler. There is
// no gas-cost method on the entry itself — cost is a flat
// params.BaseHostCallGas the driver deducts before dispatch, except
// `transfer`'s success-only surcharge, which the handler reports back
// explicitly (see accumulate.go hostTransfer).
type Dispatcher struct {
	handlers map[uint64]Handler
}

// NewDispatcher builds the id-keyed catalogue: every general and
// accumulate host call except the two colliding pairs. Both `bless`/`designate` and
// `query`/`solicit` legitimately share a function id (16 and 23
// respectively, per the Gray Paper) — the dispatcher cannot
// distinguish them by id alone, so the driver is responsible for
// invoking the right handler function (see accumulate.go's doc
// comment on that pair).
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[uint64]Handler)}

	d.handlers[params.HostCallGas] = hostGas
	d.handlers[params.HostCallFetch] = hostFetch
	d.handlers[params.HostCallLookup] = hostLookup
	d.handlers[params.HostCallHistoricalLookup] = hostHistoricalLookup
	d.handlers[params.HostCallRead] = hostRead
	d.handlers[params.HostCallWrite] = hostWrite
	d.handlers[params.HostCallInfo] = hostInfo
	d.handlers[params.HostCallExport] = hostExport
	d.handlers[params.HostCallMachine] = hostMachine
	d.handlers[params.HostCallPeek] = hostPeek
	d.handlers[params.HostCallPoke] = hostPoke
	d.handlers[params.HostCallPages] = hostPages
	d.handlers[params.HostCallInvoke] = hostInvoke
	d.handlers[params.HostCallExpunge] = hostExpunge
	d.handlers[params.HostCallLog] = hostLog

	// Accumulate calls. HostCallBless/HostCallDesignate and
	// HostCallQuery/HostCallSolicit alias the same id (16, 23), so none
	// of those four is registered here; Dispatch of id 16 or 23 reports
	// WHAT. The accumulate driver dispatches those four by name
	// (driver.Driver.dispatch).
	d.handlers[params.HostCallAssign] = hostAssign
	d.handlers[params.HostCallCheckpoint] = hostCheckpoint
	d.handlers[params.HostCallNew] = hostNew
	d.handlers[params.HostCallUpgrade] = hostUpgrade
	d.handlers[params.HostCallTransfer] = hostTransfer
	d.handlers[params.HostCallEject] = hostEject
	d.handlers[params.HostCallForget] = hostForget
	d.handlers[params.HostCallProvide] = hostProvide
	d.handlers[params.HostCallYield] = hostYield

	return d
}

// Lookup returns the handler for id, or (nil, false) if none is
// registered by id alone (the colliding pairs noted above).
func (d *Dispatcher) Lookup(id uint64) (Handler, bool) {
	h, ok := d.handlers[id]
	return h, ok
}

// Dispatch runs the handler for id against ctx. An id with no
// registered handler is a malformed request, reported in-band: the
// guest keeps running with WHAT in its result register.
func (d *Dispatcher) Dispatch(id uint64, ctx *Context) vm.Status {
	h, ok := d.Lookup(id)
	if !ok {
		ctx.Regs[7] = vm.WHAT
		return vm.Continue
	}
	return h(ctx)
}

// CallName returns the catalogue name for a host-call id, resolving
// the colliding pairs (16, 23) through the same variant flag the
// driver dispatches on. Unknown ids report as "unknown" so log lines
// stay greppable.
func CallName(id uint64, variant uint8) string {
	switch id {
	case params.HostCallGas:
		return "gas"
	case params.HostCallFetch:
		return "fetch"
	case params.HostCallLookup:
		return "lookup"
	case params.HostCallRead:
		return "read"
	case params.HostCallWrite:
		return "write"
	case params.HostCallInfo:
		return "info"
	case params.HostCallHistoricalLookup:
		return "historical_lookup"
	case params.HostCallExport:
		return "export"
	case params.HostCallMachine:
		return "machine"
	case params.HostCallPeek:
		return "peek"
	case params.HostCallPoke:
		return "poke"
	case params.HostCallPages:
		return "pages"
	case params.HostCallInvoke:
		return "invoke"
	case params.HostCallExpunge:
		return "expunge"
	case params.HostCallAssign:
		return "assign"
	case params.HostCallBless: // == HostCallDesignate
		if variant == 0 {
			return "bless"
		}
		return "designate"
	case params.HostCallCheckpoint:
		return "checkpoint"
	case params.HostCallNew:
		return "new"
	case params.HostCallUpgrade:
		return "upgrade"
	case params.HostCallTransfer:
		return "transfer"
	case params.HostCallEject:
		return "eject"
	case params.HostCallProvide:
		return "provide"
	case params.HostCallQuery: // == HostCallSolicit
		if variant == 0 {
			return "query"
		}
		return "solicit"
	case params.HostCallForget:
		return "forget"
	case params.HostCallYield:
		return "yield"
	case params.HostCallLog:
		return "log"
	default:
		return "unknown"
	}
}

// Named accumulate handlers for the colliding-id pairs, used directly
// by callers (the invocation driver) that statically know which call
// they're issuing rather than resolving purely by id.
var (
	HostBless     Handler = hostBless
	HostDesignate Handler = hostDesignate
	HostQuery     Handler = hostQuery
	HostSolicit   Handler = hostSolicit
)
