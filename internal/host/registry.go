package host

import "fmt"

// Registry maps kernel names to their Go implementations.
type Registry map[string]Func

// DefaultRegistry returns the kernels shipped with the host backend.
func DefaultRegistry() Registry {
	return Registry{
		"square": Square,
	}
}

// Square writes input[i]*input[i] to output[i], where i linearizes the
// global id in row-major order of the range.
func Square(item WorkItem, args *Args) error {
	in, err := args.Reals(0)
	if err != nil {
		return err
	}
	out, err := args.Reals(1)
	if err != nil {
		return err
	}

	i := item.GlobalID(0) +
		item.GlobalID(1)*item.GlobalSize(0) +
		item.GlobalID(2)*item.GlobalSize(0)*item.GlobalSize(1)
	if i >= uint64(len(in)) || i >= uint64(len(out)) {
		return fmt.Errorf("square: index %d out of bounds (in=%d out=%d)", i, len(in), len(out))
	}
	out[i] = in[i] * in[i]
	return nil
}
