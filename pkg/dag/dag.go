// Package dag reads summary information out of a batch dag file: how many
// jobs it ran, how many events those jobs were asked to generate, and the
// simulation flavor.
//
// Only three facts are extracted; the dag format itself is otherwise
// opaque to this tool.
package dag

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Info summarizes one dag file.
type Info struct {
	// Jobs is the number of JOB lines.
	Jobs int

	// Events is the sum of all events="N" attributes.
	Events int64

	// Flavor is the simulation flavor (e.g. "NEST", "G4"), taken from the
	// first flavor="..." attribute near the top of the file.
	Flavor string
}

var (
	eventsRe = regexp.MustCompile(`events="(\d+)"`)
	flavorRe = regexp.MustCompile(`flavor="(.*?)"`)
)

// flavorWindow bounds how far into the file the flavor attribute is
// searched for; it appears in the preamble when present at all.
const flavorWindow = 1024

// Read parses the dag file at path.
func Read(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dag file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info := &Info{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	read := 0
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "JOB ") {
			info.Jobs++
		}
		if m := eventsRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				info.Events += n
			}
		}
		if info.Flavor == "" && read < flavorWindow {
			if m := flavorRe.FindStringSubmatch(line); m != nil {
				info.Flavor = m[1]
			}
		}
		read += len(line) + 1
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dag file: %w", err)
	}

	return info, nil
}
