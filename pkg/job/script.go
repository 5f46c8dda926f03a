package job

import (
	"strings"
)

// Script renders the scheduler submission script for a descriptor.
//
// The descriptor stays a typed value until this point; rendering is the
// only place scheduler syntax appears, so the descriptor itself can be
// tested without string matching.
func Script(d *Descriptor) string {
	var b strings.Builder

	b.WriteString("#!/bin/bash\n\n")
	b.WriteString("#SBATCH --output=" + d.StdoutPath + "\n")
	b.WriteString("#SBATCH --error=" + d.StderrPath + "\n")
	b.WriteString("#SBATCH --time=" + FormatWallClock(d.Partition.WallClock) + "\n")
	if d.Partition.Account != "" {
		b.WriteString("#SBATCH --account=" + d.Partition.Account + "\n")
	}
	if d.Partition.QOS != "" {
		b.WriteString("#SBATCH --qos=" + d.Partition.QOS + "\n")
	}
	if d.Partition.Variant != VariantPublic {
		b.WriteString("#SBATCH --partition=" + d.Partition.Queue + "\n")
	}
	b.WriteString("\n")

	if d.EnvSetup != "" {
		b.WriteString(". " + d.EnvSetup + "\n\n")
	}

	for _, cmd := range d.Commands {
		b.WriteString(strings.Join(cmd, " ") + "\n")
	}

	return b.String()
}
