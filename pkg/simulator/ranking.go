package simulator

import "cmp"

// CompareDeviceTypes orders device types from least to most preferred:
// every iPad ranks below every iPhone, and within a family a later catalog
// position (a newer device type) ranks higher.
func CompareDeviceTypes(a, b DeviceType) int {
	if c := cmp.Compare(a.Family(), b.Family()); c != 0 {
		return c
	}
	return cmp.Compare(a.CatalogIndex, b.CatalogIndex)
}

// stateRank puts Booted above transitional states and those above Shutdown.
func stateRank(s State) int {
	switch s {
	case StateBooted:
		return 2
	case StateShutdown:
		return 0
	default:
		return 1
	}
}

// CompareInstances orders instances from least to most preferred: a booted
// instance outranks a shut down one regardless of device type; otherwise the
// instances' device types decide.
func CompareInstances(a, b Instance) int {
	if c := cmp.Compare(stateRank(a.State), stateRank(b.State)); c != 0 {
		return c
	}
	switch {
	case a.DeviceType == nil && b.DeviceType == nil:
		return 0
	case a.DeviceType == nil:
		return -1
	case b.DeviceType == nil:
		return 1
	}
	return CompareDeviceTypes(*a.DeviceType, *b.DeviceType)
}

// best returns the most preferred item. Among equals the later one wins,
// matching a stable ascending sort followed by taking the last element.
func best[T any](items []T, compare func(a, b T) int) (T, bool) {
	var top T
	if len(items) == 0 {
		return top, false
	}
	top = items[0]
	for _, item := range items[1:] {
		if compare(item, top) >= 0 {
			top = item
		}
	}
	return top, true
}
