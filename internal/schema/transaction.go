package schema

// Transaction runs fn against the mapper with a rollback snapshot pushed on
// the mapper's own stack. If fn returns an error or panics, Schema is restored
// to its pre-transaction state before the error is returned (or the panic
// re-raised). Transactions may nest; each level restores its own snapshot.
func (m *Mapper) Transaction(fn func(*Mapper) error) (err error) {
	m.snapshots = append(m.snapshots, deepCopyMap(m.Schema))
	depth := len(m.snapshots)

	defer func() {
		snap := m.snapshots[depth-1]
		m.snapshots = m.snapshots[:depth-1]

		if r := recover(); r != nil {
			m.Schema = snap
			m.logger.Error("schema transaction panicked, rolled back", "depth", depth, "panic", r)
			panic(r)
		}
		if err != nil {
			m.Schema = snap
			m.logger.Warn("schema transaction rolled back", "depth", depth, "error", err)
		}
	}()

	return fn(m)
}

// Depth returns the number of in-flight transactions on this mapper.
func (m *Mapper) Depth() int {
	return len(m.snapshots)
}
