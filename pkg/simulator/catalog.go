package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/devicelab-dev/simrun/pkg/core"
)

// Catalog is the parsed output of `simctl list -j`. It is never mutated after
// parsing; filters build new slices.
type Catalog struct {
	DeviceTypes []DeviceType // Source order, oldest first
	Runtimes    []Runtime
	Instances   []Instance // Flattened in source order, tagged with RuntimeIdentifier
}

// simctlListOutput represents the JSON output from xcrun simctl list -j.
// Fields are pointers so a missing or null section can be told apart from an
// empty one.
type simctlListOutput struct {
	DeviceTypes *[]simctlDeviceType `json:"devicetypes"`
	Runtimes    *[]simctlRuntime    `json:"runtimes"`
	Devices     *simctlDeviceMap    `json:"devices"`
}

// missing names the first top-level section absent from the listing.
func (o simctlListOutput) missing() string {
	switch {
	case o.DeviceTypes == nil:
		return "devicetypes"
	case o.Runtimes == nil:
		return "runtimes"
	case o.Devices == nil:
		return "devices"
	}
	return ""
}

type simctlDeviceType struct {
	Name              string `json:"name"`
	Identifier        string `json:"identifier"`
	ProductFamily     string `json:"productFamily"`
	MaxRuntimeVersion uint64 `json:"maxRuntimeVersion"`
}

type simctlRuntime struct {
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	IsAvailable bool   `json:"isAvailable"`
}

type simctlDevice struct {
	Name                 string `json:"name"`
	UDID                 string `json:"udid"`
	State                string `json:"state"`
	DeviceTypeIdentifier string `json:"deviceTypeIdentifier"`
	IsAvailable          *bool  `json:"isAvailable"`
	Availability         string `json:"availability"` // Xcode 10 and earlier
}

func (d simctlDevice) available() bool {
	if d.IsAvailable != nil {
		return *d.IsAvailable
	}
	return d.Availability == "(available)"
}

// simctlDeviceMap keeps the runtime keys of "devices" in document order so
// ranking ties resolve the same way on every run.
type simctlDeviceMap []simctlRuntimeDevices

type simctlRuntimeDevices struct {
	runtime string
	devices []simctlDevice
}

func (m *simctlDeviceMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("devices: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("devices: expected runtime identifier, got %v", keyTok)
		}
		var devices []simctlDevice
		if err := dec.Decode(&devices); err != nil {
			return fmt.Errorf("devices[%s]: %w", key, err)
		}
		*m = append(*m, simctlRuntimeDevices{runtime: key, devices: devices})
	}

	_, err = dec.Token()
	return err
}

// ParseCatalog parses `simctl list -j` output. Only structure is checked;
// nothing is filtered.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw simctlListOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.ErrMalformedCatalog.WithCause(err)
	}
	if key := raw.missing(); key != "" {
		return nil, core.ErrMalformedCatalog.
			WithMessage(fmt.Sprintf("simctl listing has no %q section", key)).
			WithDetails(map[string]interface{}{"key": key})
	}

	cat := &Catalog{}
	for i, dt := range *raw.DeviceTypes {
		maxVersion := dt.MaxRuntimeVersion
		if maxVersion > math.MaxUint32 {
			maxVersion = math.MaxUint32
		}
		cat.DeviceTypes = append(cat.DeviceTypes, DeviceType{
			Name:              dt.Name,
			Identifier:        dt.Identifier,
			ProductFamily:     dt.ProductFamily,
			MaxRuntimeVersion: uint32(maxVersion),
			CatalogIndex:      i,
		})
	}

	for _, rt := range *raw.Runtimes {
		cat.Runtimes = append(cat.Runtimes, Runtime{
			Identifier:  rt.Identifier,
			Name:        rt.Name,
			Version:     rt.Version,
			IsAvailable: rt.IsAvailable,
		})
	}

	for _, group := range *raw.Devices {
		for _, dev := range group.devices {
			cat.Instances = append(cat.Instances, Instance{
				UDID:                 dev.UDID,
				Name:                 dev.Name,
				State:                State(dev.State),
				DeviceTypeIdentifier: dev.DeviceTypeIdentifier,
				RuntimeIdentifier:    group.runtime,
				IsAvailable:          dev.available(),
			})
		}
	}

	return cat, nil
}

// DeviceType looks up a device type by identifier.
func (c *Catalog) DeviceType(identifier string) (DeviceType, bool) {
	for _, dt := range c.DeviceTypes {
		if dt.Identifier == identifier {
			return dt, true
		}
	}
	return DeviceType{}, false
}
