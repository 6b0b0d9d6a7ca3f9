package params

import "github.com/probeum/jampvm/common"

// Constants is the decoded form of the `fetch` selector 0 payload:
// 134 bytes of packed little-endian protocol constants. The fields
// this core's own invariants depend on (deposit constants,
// memo/segment/export sizing, queue/core/validator counts, expunge
// period) are joined by the rest of the Gray Paper's constant set
// (rotation/epoch timing, work-package/report limits) at the widths
// JAM specifies for them, so that fetch selector 0 always returns
// exactly 134 bytes end to end. Field order is the declaration order
// below; the Reserved fields are always zero.
type Constants struct {
	// u16 fields (23 × 2 = 46 bytes)
	CoreCount               uint16
	ValidatorCount          uint16
	AuthQueueSize           uint16
	EpochLength             uint16
	RotationPeriod          uint16
	MaxTicketsPerBlock      uint16
	TicketSubmissionEnds    uint16
	MaxLookupAnchorAge      uint16
	ValidatorsSuperMajority uint16
	RecentHistorySize       uint16
	MaxAuthPoolSize         uint16
	MaxWorkItemsPerPkg      uint16
	MaxDependenciesPerWI    uint16
	PreimageExpiryPeriod    uint16
	Reserved1               uint16
	Reserved2               uint16
	Reserved3               uint16
	Reserved4               uint16
	Reserved5               uint16
	Reserved6               uint16
	Reserved7               uint16
	Reserved8               uint16
	Reserved9               uint16

	// u32 fields (10 × 4 = 40 bytes)
	MemoSize           uint32
	MaxPackageExports  uint32
	ExpungePeriod      uint32
	MaxBlockGas        uint32
	MaxWorkPackageSize uint32
	MaxServiceCodeSize uint32
	MaxImportsPerWI    uint32
	MaxExtrinsicSize   uint32
	SlotPeriodMillis   uint32
	MinPublicIndex     uint32

	// u64 fields (6 × 8 = 48 bytes)
	BaseDeposit  uint64
	ItemDeposit  uint64
	ByteDeposit  uint64
	MaxAccumGas  uint64
	MaxIsAuthGas uint64
	MaxRefineGas uint64
}

// ConstantsFor builds the Constants vector for a given network
// Config, filling the sizing fields from cfg and the rest from the
// fixed protocol-wide constant set (see type doc).
func ConstantsFor(cfg Config) Constants {
	return Constants{
		CoreCount:               cfg.CoreCount,
		ValidatorCount:          cfg.ValidatorCount,
		AuthQueueSize:           AuthQueueSize,
		EpochLength:             600,
		RotationPeriod:          10,
		MaxTicketsPerBlock:      16,
		TicketSubmissionEnds:    500,
		MaxLookupAnchorAge:      14400,
		ValidatorsSuperMajority: uint16(cfg.ValidatorCount*2/3 + 1),
		RecentHistorySize:       8,
		MaxAuthPoolSize:         8,
		MaxWorkItemsPerPkg:      16,
		MaxDependenciesPerWI:    8,
		PreimageExpiryPeriod:    uint16(cfg.ExpungePeriod),

		MemoSize:           MemoSize,
		MaxPackageExports:  MaxPackageExports,
		ExpungePeriod:      cfg.ExpungePeriod,
		MaxBlockGas:        3_500_000_000,
		MaxWorkPackageSize: 12_582_912,
		MaxServiceCodeSize: 4_000_000,
		MaxImportsPerWI:    3072,
		MaxExtrinsicSize:   128_000,
		SlotPeriodMillis:   6000,
		MinPublicIndex:     MinPublicIndex,

		BaseDeposit:  BaseDeposit,
		ItemDeposit:  ItemDeposit,
		ByteDeposit:  ByteDeposit,
		MaxAccumGas:  10_000_000_000,
		MaxIsAuthGas: 50_000_000,
		MaxRefineGas: 5_000_000_000,
	}
}

// Encode packs Constants into the fixed 134-byte little-endian vector
// `fetch` selector 0 returns.
func (c Constants) Encode() []byte {
	b := make([]byte, 0, ConstantsPayloadSize)
	u16 := []uint16{
		c.CoreCount, c.ValidatorCount, c.AuthQueueSize, c.EpochLength,
		c.RotationPeriod, c.MaxTicketsPerBlock, c.TicketSubmissionEnds,
		c.MaxLookupAnchorAge, c.ValidatorsSuperMajority, c.RecentHistorySize,
		c.MaxAuthPoolSize, c.MaxWorkItemsPerPkg, c.MaxDependenciesPerWI,
		c.PreimageExpiryPeriod, c.Reserved1, c.Reserved2, c.Reserved3,
		c.Reserved4, c.Reserved5, c.Reserved6, c.Reserved7, c.Reserved8,
		c.Reserved9,
	}
	for _, v := range u16 {
		b = append(b, common.EncodeUint16(v)...)
	}
	u32 := []uint32{
		c.MemoSize, c.MaxPackageExports, c.ExpungePeriod, c.MaxBlockGas,
		c.MaxWorkPackageSize, c.MaxServiceCodeSize, c.MaxImportsPerWI,
		c.MaxExtrinsicSize, c.SlotPeriodMillis, c.MinPublicIndex,
	}
	for _, v := range u32 {
		b = append(b, common.EncodeUint32(v)...)
	}
	u64 := []uint64{
		c.BaseDeposit, c.ItemDeposit, c.ByteDeposit, c.MaxAccumGas,
		c.MaxIsAuthGas, c.MaxRefineGas,
	}
	for _, v := range u64 {
		b = append(b, common.EncodeUint64(v)...)
	}
	return b
}
