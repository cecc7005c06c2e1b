package services

// LockCounts reports how many round gates and participant slots are held
func (m *RoundManager) LockCounts() (gates, slots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.gates), len(m.slots)
}
