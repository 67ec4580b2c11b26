package policy

// Approximate per-entry overheads used for memory accounting.
const (
	EntryOverhead      = 64
	ZSetMemberOverhead = 80
)

// StringCost estimates the memory held by a string entry.
func StringCost(key string, size int) int64 {
	return int64(EntryOverhead + len(key) + size)
}

// ZSetCost estimates the memory held by a sorted set entry whose members
// total memberBytes bytes.
func ZSetCost(key string, members, memberBytes int) int64 {
	// Members are stored twice: once as map key and once in the index.
	return int64(EntryOverhead + len(key) + members*ZSetMemberOverhead + 2*memberBytes)
}
