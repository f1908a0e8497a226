package client

import (
	"fmt"
	"strings"
)

// SolveTask parses a task of the form "<verb> <a> and <b>" and computes the
// answer. Recognized verbs are Add, Subtract, Multiply and Divide.
func SolveTask(content string) (float64, error) {
	fields := strings.Fields(content)
	if len(fields) != 4 || fields[2] != "and" {
		return 0, fmt.Errorf("unrecognized task %q", content)
	}

	var a, b float64
	if _, err := fmt.Sscanf(fields[1]+" "+fields[3], "%f %f", &a, &b); err != nil {
		return 0, fmt.Errorf("unrecognized operands in %q: %w", content, err)
	}

	switch fields[0] {
	case "Add":
		return a + b, nil
	case "Subtract":
		return a - b, nil
	case "Multiply":
		return a * b, nil
	case "Divide":
		if b == 0 {
			return 0, fmt.Errorf("division by zero in %q", content)
		}
		return a / b, nil
	default:
		return 0, fmt.Errorf("unrecognized operation %q", fields[0])
	}
}
