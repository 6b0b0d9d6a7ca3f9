// Package hostcall implements the host-call catalogue: the
// dispatcher mapping function id -> handler, and the general and
// accumulate handlers themselves. Every handler reads its arguments
// from the register file and guest memory, mutates the implication
// pair in place, and reports an out-of-band status to the driver.
package hostcall

import (
	"github.com/probeum/jampvm/common"
	"github.com/probeum/jampvm/core/state"
	"github.com/probeum/jampvm/core/vm"
)

// RefineData bundles the refine-phase-only inputs `fetch` can select
// among. The codecs that produce these encoded blobs (work package,
// work items, auth config/token) are external collaborators; this
// core only needs their already-encoded bytes.
type RefineData struct {
	Entropy               [32]byte
	AuthorizerTrace       []byte
	ImportSegments        [][]byte // flat index
	WorkPackageEncoded    []byte
	AuthConfig            []byte
	AuthToken             []byte
	WorkPackageContext    []byte
	WorkItemSummaries     []byte // encoded sequence
	WorkItemSummary       func(i uint64) ([]byte, bool)
	WorkItemPayload       func(i uint64) ([]byte, bool)
	WorkItemsEncoded      []byte
	WorkItemEncoded       func(i uint64) ([]byte, bool)
	CurrentWorkItemExport []byte                        // selector 4: export segment of the current work item
	CurrentImportIndex    func(i uint64) ([]byte, bool) // selector 6: import segment of current work item
}

// Context is the bundle every handler receives: gas counter,
// registers, memory, the implication pair, timeslot/expunge period,
// the refine-only machine registry, export-segment buffer and
// RefineData (nil outside refine phase), and a logger.
type Context struct {
	Gas           *uint64
	Regs          *vm.Registers
	Memory        *vm.Memory
	Impair        *vm.ImplicationPair
	Timeslot      uint32
	ExpungePeriod uint32

	// Refine-phase-only collaborators; nil in accumulate-phase
	// invocations.
	Machines *vm.MachineRegistry
	Segments *vm.SegmentBuffer
	Refine   *RefineData

	// Interp is the interpreter new guest machines created by `machine`
	// run under; supplied by the driver, since Context has no business
	// constructing one itself.
	Interp vm.Interpreter

	// ConstantsPayload is the pre-encoded 134-byte vector `fetch`
	// selector 0 returns (params.Constants.Encode()), computed once by
	// the driver from the active params.Config rather than re-encoded
	// on every fetch call.
	ConstantsPayload []byte

	// PendingGasCharge is how a handler reports a success-only gas
	// surcharge the driver must deduct after dispatch, on top of the
	// flat params.BaseHostCallGas already taken before dispatch.
	// `transfer` is the only call that uses this: 10 + gas_limit on
	// success, 10 on every other outcome.
	PendingGasCharge uint64

	Log Logger
}

// Logger is the minimal structured-logging surface handlers use.
// A *logrus.Entry is adapted to it by NewLogrusLogger (logger.go).
type Logger interface {
	WithField(key string, value interface{}) Logger
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

func (c *Context) state() *vm.Implication { return c.Impair.Regular }

func (c *Context) partialState() *state.PartialState { return c.state().State }

// CurrentAccount returns the invoking service's own account. Every
// accumulate call operates on an account that must exist (the
// currently executing service is always a real account), so callers
// may assume a non-nil result.
func (c *Context) CurrentAccount() *state.Account {
	return c.partialState().Accounts[c.state().ServiceID]
}

// AccountByID looks up any account by id, returning (nil, false) when
// absent.
func (c *Context) AccountByID(id common.ServiceID) (*state.Account, bool) {
	a, ok := c.partialState().Accounts[id]
	return a, ok
}

// currentService resolves the "current when equal to the current id
// or NoServiceSelector" convention shared by lookup/info/
// historical_lookup/provide.
func (c *Context) currentService(selector uint64) common.ServiceID {
	cur := c.state().ServiceID
	if selector == vm.NoServiceSelector || common.ServiceID(selector) == cur {
		return cur
	}
	return common.ServiceID(selector)
}
