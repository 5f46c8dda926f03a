package job

import (
	"errors"
	"fmt"
	"time"
)

// Variant selects a partition/queue class. Resource limits and accounting
// labels are fixed per variant; there is no per-job override.
type Variant string

const (
	// VariantPublic is the shared public partition.
	VariantPublic Variant = "public"

	// VariantPrivate is the group-owned partition with its own allocation.
	VariantPrivate Variant = "private"

	// VariantPrivateSecondary is the secondary group allocation on the
	// institute partition. It shares the group account but competes with
	// other tenants, so it keeps the public-class occupancy ceiling.
	VariantPrivateSecondary Variant = "private-secondary"
)

// ErrUnknownVariant is returned for an unrecognized partition variant.
var ErrUnknownVariant = errors.New("unknown partition variant")

// Partition holds the fixed scheduling parameters for one queue class.
type Partition struct {
	Variant Variant

	// Queue is the scheduler partition name.
	Queue string

	// Account and QOS are the accounting labels; empty on the public class.
	Account string
	QOS     string

	// Ceiling is the occupancy ceiling the throttle controller enforces
	// for this class.
	Ceiling int

	// WallClock is the per-job time limit.
	WallClock time.Duration
}

const defaultWallClock = 5 * time.Minute

var partitions = map[Variant]Partition{
	VariantPublic: {
		Variant:   VariantPublic,
		Queue:     "sandyb",
		Ceiling:   64,
		WallClock: defaultWallClock,
	},
	VariantPrivate: {
		Variant:   VariantPrivate,
		Queue:     "xenon1t",
		Account:   "pi-lgrandi",
		QOS:       "xenon1t",
		Ceiling:   200,
		WallClock: defaultWallClock,
	},
	VariantPrivateSecondary: {
		Variant:   VariantPrivateSecondary,
		Queue:     "kicp",
		Account:   "pi-lgrandi",
		QOS:       "xenon1t-kicp",
		Ceiling:   64,
		WallClock: defaultWallClock,
	},
}

// LookupPartition resolves a variant to its fixed partition parameters.
func LookupPartition(v Variant) (Partition, error) {
	p, ok := partitions[v]
	if !ok {
		return Partition{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	return p, nil
}

// Variants lists the recognized variant names, for flag help text.
func Variants() []Variant {
	return []Variant{VariantPublic, VariantPrivate, VariantPrivateSecondary}
}

// FormatWallClock renders a duration in the scheduler's HH:MM:SS form.
func FormatWallClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
