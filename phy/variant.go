package phy

// Variant is the PHY part wired to the MAC. It selects the register used for
// status snapshots and the default bus address.
type Variant uint8

const (
	// VariantGeneric decodes status from the IEEE BMSR.
	VariantGeneric Variant = iota // generic
	// VariantLAN8742 is the Microchip LAN8742A found on Nucleo-144 boards. Status from BMSR.
	VariantLAN8742 // lan8742
	// VariantDP83848 is the TI DP83848 found on many STM32F107 boards. Status from PHYSTS.
	VariantDP83848 // dp83848
)

// DefaultAddr returns the address the part strap-configures to on reference boards.
func (v Variant) DefaultAddr() uint8 {
	if v == VariantDP83848 {
		return 1
	}
	return 0
}


// ParseVariant parses the output of [Variant.String].
func ParseVariant(s string) (Variant, bool) {
	for v := VariantGeneric; v <= VariantDP83848; v++ {
		if v.String() == s {
			return v, true
		}
	}
	return VariantGeneric, false
}
