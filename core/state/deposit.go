package state

import "github.com/holiman/uint256"

// Deposit/footprint arithmetic. Every balance/footprint addition
// must be checked; overflow is reported as FULL to the guest, never
// as a wrap. The 256-bit word library does the heavy lifting: a u64
// sum can never overflow a 256-bit accumulator, so overflow detection
// reduces to a single IsUint64 range check on the result, which is
// cheaper to get right than a hand-rolled add-with-carry check at
// every call site.

// AddU64Checked returns a+b and true, or (0, false) if the true sum
// does not fit in a u64.
func AddU64Checked(a, b uint64) (uint64, bool) {
	sum := new(uint256.Int).AddUint64(uint256.NewInt(a), b)
	if !sum.IsUint64() {
		return 0, false
	}
	return sum.Uint64(), true
}

// MinBalance computes min_balance(a) = max(0, C_base + C_item*items +
// C_byte*octets - gratis). ok is false on any intermediate overflow,
// in which case the caller must report FULL rather than trust the
// returned value.
func MinBalance(baseDeposit, itemDeposit, byteDeposit uint64, items uint32, octets uint64, gratis uint64) (uint64, bool) {
	itemCost := new(uint256.Int).Mul(uint256.NewInt(itemDeposit), uint256.NewInt(uint64(items)))
	byteCost := new(uint256.Int).Mul(uint256.NewInt(byteDeposit), uint256.NewInt(octets))

	total := new(uint256.Int).Add(uint256.NewInt(baseDeposit), itemCost)
	total.Add(total, byteCost)

	if total.Cmp(uint256.NewInt(gratis)) <= 0 {
		return 0, true
	}
	total.Sub(total, uint256.NewInt(gratis))
	if !total.IsUint64() {
		return 0, false
	}
	return total.Uint64(), true
}

// Footprint computes items = 2*|requests| + |storage| and
// octets = sum(81+z over requests) + sum(34+|k|+|v| over storage).
// ok is false if the octet sum overflows.
func Footprint(requestLengths []uint64, storageKV [][2]int) (items uint32, octets uint64, ok bool) {
	items = uint32(2*len(requestLengths) + len(storageKV))

	acc := uint256.NewInt(0)
	for _, z := range requestLengths {
		// 81+z must overflow into the accumulator, not wrap in u64.
		acc.Add(acc, new(uint256.Int).AddUint64(uint256.NewInt(81), z))
	}
	for _, kv := range storageKV {
		acc.Add(acc, uint256.NewInt(uint64(34+kv[0]+kv[1])))
	}
	if !acc.IsUint64() {
		return items, 0, false
	}
	return items, acc.Uint64(), true
}
