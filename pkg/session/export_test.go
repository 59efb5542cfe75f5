package session

// LockCount reports how many session locks are held or awaited.
func LockCount(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// ChatCount reports how many sessions have a running chat.
func ChatCount(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}
