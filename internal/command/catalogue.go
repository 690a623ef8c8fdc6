package command

// BuiltinRegistry returns the frozen registry with every built-in command.
func BuiltinRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(menuCommand())
	r.MustRegister(pingCommand())
	r.MustRegister(ownerCommand())
	r.MustRegister(profileCommand())
	r.MustRegister(proposeCommand())
	r.MustRegister(acceptCommand())
	r.MustRegister(rejectCommand())
	r.MustRegister(breakupCommand())
	r.MustRegister(coupleCommand())
	r.Freeze()
	return r
}
