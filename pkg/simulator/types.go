// Package simulator discovers, ranks, boots and tears down iOS simulators
// through simctl.
package simulator

import (
	"fmt"
	"strings"
)

// Family is the product family of a device type. Values are ordered by
// preference: iPhone outranks iPad.
type Family int

const (
	FamilyOther Family = iota
	FamilyIPad
	FamilyIPhone
)

// String returns the simctl spelling of the family.
func (f Family) String() string {
	switch f {
	case FamilyIPhone:
		return "iPhone"
	case FamilyIPad:
		return "iPad"
	default:
		return "other"
	}
}

// DeviceType is a hardware profile from `simctl list -j`.
type DeviceType struct {
	Name              string // e.g., "iPhone 15 Pro"
	Identifier        string // e.g., "com.apple.CoreSimulator.SimDeviceType.iPhone-15-Pro"
	ProductFamily     string // "iPhone", "iPad"; empty on older Xcode releases
	MaxRuntimeVersion uint32 // Encoded like VersionKey; 0 when absent
	CatalogIndex      int    // Position in the listing; simctl lists oldest first
}

// Family classifies the device type, falling back to the identifier when
// productFamily is missing.
func (d DeviceType) Family() Family {
	if d.hasFamily("iPhone") {
		return FamilyIPhone
	}
	if d.hasFamily("iPad") {
		return FamilyIPad
	}
	return FamilyOther
}

func (d DeviceType) hasFamily(family string) bool {
	if d.ProductFamily != "" {
		return d.ProductFamily == family
	}
	return strings.Contains(d.Identifier, family)
}

// SupportsVersion reports whether the device type can run minimumOS. A device
// type without a maximum runtime version is assumed to support everything.
func (d DeviceType) SupportsVersion(minimumOS uint32) bool {
	return d.MaxRuntimeVersion == 0 || d.MaxRuntimeVersion >= minimumOS
}

func (d DeviceType) String() string {
	return d.Name + " (" + d.Identifier + ")"
}

// Runtime is a platform version image from `simctl list -j`.
type Runtime struct {
	Identifier  string // e.g., "com.apple.CoreSimulator.SimRuntime.iOS-17-2"
	Name        string // e.g., "iOS 17.2"
	Version     string // e.g., "17.2"
	IsAvailable bool
}

// State is the boot state simctl reports for an instance.
type State string

const (
	StateBooted   State = "Booted"
	StateShutdown State = "Shutdown"
)

// Instance is a provisioned simulator.
type Instance struct {
	UDID                 string
	Name                 string
	State                State
	DeviceTypeIdentifier string
	RuntimeIdentifier    string
	IsAvailable          bool

	// DeviceType is resolved by the compatibility filter; nil in a raw catalog.
	DeviceType *DeviceType
}

// IsBooted returns true if the instance reports Booted.
func (i Instance) IsBooted() bool {
	return i.State == StateBooted
}

// IsShutdown returns true if the instance reports Shutdown.
func (i Instance) IsShutdown() bool {
	return i.State == StateShutdown
}

// OSVersion returns the version encoded in the instance's runtime identifier.
func (i Instance) OSVersion() string {
	return extractOSVersion(i.RuntimeIdentifier)
}

func (i Instance) String() string {
	return i.Name + " (" + i.UDID + ")"
}

// Constraints are the caller's requirements for a simulator.
type Constraints struct {
	MinimumOS  string // Required; e.g., "15.0"
	DeviceName string // Optional case-insensitive substring of the device type name
	OSVersion  string // Optional exact runtime version, e.g., "17.2"
}

func (c Constraints) String() string {
	return fmt.Sprintf("minimum OS version %s (device name %s, OS version %s)",
		c.MinimumOS, orNone(c.DeviceName), orNone(c.OSVersion))
}

func (c Constraints) details() map[string]interface{} {
	return map[string]interface{}{
		"minimum_os":  c.MinimumOS,
		"device_name": c.DeviceName,
		"os_version":  c.OSVersion,
	}
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// Selection is the best device type and best instance for a set of
// constraints. Either may be nil independently of the other.
type Selection struct {
	DeviceType *DeviceType
	Instance   *Instance
}

// Empty returns true if nothing matched.
func (s Selection) Empty() bool {
	return s.DeviceType == nil && s.Instance == nil
}

// Mode is the lifetime policy of a simulator handle.
type Mode int

const (
	// ModePersistent leaves the simulator running for reuse.
	ModePersistent Mode = iota
	// ModeEphemeral shuts down and deletes the simulator on release.
	ModeEphemeral
)

func (m Mode) String() string {
	if m == ModeEphemeral {
		return "ephemeral"
	}
	return "persistent"
}
