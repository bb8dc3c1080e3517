package auth

import "context"

type machineContextKey struct{}

// ContextWithMachine stores the request's auth machine in context.
func ContextWithMachine(ctx context.Context, m *Machine) context.Context {
	return context.WithValue(ctx, machineContextKey{}, m)
}

// MachineFromContext extracts the auth machine from context.
func MachineFromContext(ctx context.Context) *Machine {
	m, _ := ctx.Value(machineContextKey{}).(*Machine)
	return m
}

// StateFromContext returns the machine state, or the initial state when no machine is attached.
func StateFromContext(ctx context.Context) State {
	if m := MachineFromContext(ctx); m != nil {
		return m.State()
	}
	return InitialState()
}
