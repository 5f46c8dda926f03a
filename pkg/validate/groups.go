package validate

import (
	"errors"
	"fmt"
)

// ErrUnknownFlavor is returned for a simulation flavor with no known
// output-group layout.
var ErrUnknownFlavor = errors.New("unknown simulation flavor")

// minitreeTables are the per-analysis minitree outputs every flavor
// produces. The table inside each file is named after the group.
var minitreeTables = []string{
	"Basics",
	"Fundamentals",
	"DoubleScatter",
	"LargestPeakProperties",
	"TotalProperties",
}

// StandardGroups returns the output groups a run of the given flavor is
// expected to produce: the event-level processing output, the
// flavor-specific generator and post-generator outputs, and the minitree
// outputs.
func StandardGroups(flavor string) ([]Group, error) {
	groups := []Group{
		{Name: "PAX ROOT", Suffix: "pax.root", Table: "tree"},
	}

	switch flavor {
	case "NEST":
		groups = append(groups,
			Group{Name: "Geant ROOT", Suffix: "NEST.root", Table: "events"},
			Group{Name: "Patch ROOT", Suffix: "Patch.root", Table: "events"},
		)
	case "G4":
		groups = append(groups,
			Group{Name: "Geant ROOT", Suffix: "G4.root", Table: "events"},
			Group{Name: "Sort ROOT", Suffix: "Sort.root", Table: "events"},
		)
	case "G4p10":
		groups = append(groups,
			Group{Name: "Geant ROOT", Suffix: "G4p10.root", Table: "events"},
			Group{Name: "Sort ROOT", Suffix: "Sort.root", Table: "events"},
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlavor, flavor)
	}

	for _, name := range minitreeTables {
		groups = append(groups, Group{Name: name, Suffix: name + ".root", Table: name})
	}

	return groups, nil
}
