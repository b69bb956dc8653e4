package state

var (
	chainHeightKey  = []byte("chain/height")
	chainGenesisKey = []byte("chain/genesis")
)

// Height returns the committed chain height, zero before genesis.
func (m *Manager) Height() (uint64, error) {
	var height uint64
	if _, err := m.KVGet(chainHeightKey, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// SetHeight records the chain height.
func (m *Manager) SetHeight(height uint64) error {
	return m.KVPut(chainHeightKey, height)
}

// GenesisApplied reports whether genesis allocations have been written.
func (m *Manager) GenesisApplied() (bool, error) {
	var applied bool
	ok, err := m.KVGet(chainGenesisKey, &applied)
	if err != nil {
		return false, err
	}
	return ok && applied, nil
}

// MarkGenesisApplied records that genesis allocations were written.
func (m *Manager) MarkGenesisApplied() error {
	return m.KVPut(chainGenesisKey, true)
}
