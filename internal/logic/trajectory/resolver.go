package trajectory

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolveCS parses a motor's controller output-link descriptor of the form
// "@asyn(PORT,INDEX)" into its coordinate-system port and 0-based axis
// index. The controller numbers axes from 1 externally; only ports whose
// name contains "CS" belong to a coordinate system (a plain port means the
// motor is not a compound motor and cannot fly a trajectory).
func ResolveCS(outputLink string) (CSMapping, error) {
	parts := strings.SplitN(outputLink, "(", 2)
	if len(parts) != 2 {
		return CSMapping{}, &ConfigurationError{
			Reason: fmt.Sprintf("cannot parse output link %q", outputLink),
		}
	}

	fields := strings.Split(strings.TrimSuffix(parts[1], ")"), ",")
	if len(fields) != 2 {
		return CSMapping{}, &ConfigurationError{
			Reason: fmt.Sprintf("cannot parse output link %q", outputLink),
		}
	}

	port := strings.TrimSpace(fields[0])
	if !strings.Contains(port, "CS") {
		return CSMapping{}, &ConfigurationError{
			Reason: fmt.Sprintf("port %q is not a coordinate system: not a compound motor", port),
		}
	}

	index, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return CSMapping{}, &ConfigurationError{
			Reason: fmt.Sprintf("bad axis index in output link %q", outputLink),
		}
	}
	if index < 1 {
		return CSMapping{}, &ConfigurationError{
			Reason: fmt.Sprintf("axis index %d out of range in output link %q", index, outputLink),
		}
	}

	return CSMapping{Port: port, Index: index - 1}, nil
}

// singleCSPort verifies every mapping shares one coordinate-system port and
// returns it. Motors spanning more than one CS cannot share a profile.
func singleCSPort(mappings []CSMapping) (string, error) {
	if len(mappings) == 0 {
		return "", &EmptyProfileError{Reason: "no axes resolved"}
	}
	port := mappings[0].Port
	for _, m := range mappings[1:] {
		if m.Port != port {
			return "", &ConfigurationError{
				Reason: fmt.Sprintf("axes span multiple coordinate systems (%s, %s)", port, m.Port),
			}
		}
	}
	return port, nil
}
