package simulator

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterDeviceTypes keeps the iPhone and iPad device types that can run
// minimumOS and whose name contains deviceName, compared case-folded. An
// empty deviceName matches every device type. Source order is preserved.
func FilterDeviceTypes(c *Catalog, minimumOS uint32, deviceName string) []DeviceType {
	fold := cases.Fold()
	needle := fold.String(deviceName)

	var out []DeviceType
	for _, dt := range c.DeviceTypes {
		if f := dt.Family(); f != FamilyIPhone && f != FamilyIPad {
			continue
		}
		if !dt.SupportsVersion(minimumOS) {
			continue
		}
		if needle != "" && !strings.Contains(fold.String(dt.Name), needle) {
			continue
		}
		out = append(out, dt)
	}
	return out
}

// compatibleRuntimes returns the identifiers of available runtimes, limited to
// an exact version when osVersion is set.
func compatibleRuntimes(c *Catalog, osVersion string) map[string]bool {
	ids := make(map[string]bool)
	for _, rt := range c.Runtimes {
		if !rt.IsAvailable {
			continue
		}
		if osVersion != "" && rt.Version != osVersion {
			continue
		}
		ids[rt.Identifier] = true
	}
	return ids
}

// FilterInstances keeps available instances on a compatible runtime whose
// device type is among deviceTypes. The matching device type is attached to
// each returned instance; instances with no match are dropped.
func FilterInstances(c *Catalog, deviceTypes []DeviceType, osVersion string) []Instance {
	runtimes := compatibleRuntimes(c, osVersion)

	byID := make(map[string]DeviceType, len(deviceTypes))
	for _, dt := range deviceTypes {
		byID[dt.Identifier] = dt
	}

	var out []Instance
	for _, inst := range c.Instances {
		if !runtimes[inst.RuntimeIdentifier] || !inst.IsAvailable {
			continue
		}
		dt, ok := byID[inst.DeviceTypeIdentifier]
		if !ok {
			continue
		}
		inst.DeviceType = &dt
		out = append(out, inst)
	}
	return out
}
