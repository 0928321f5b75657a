package simulator

import "testing"

// sampleCatalog mirrors `simctl list -j` output trimmed to the fields simrun reads.
const sampleCatalog = `{
  "devicetypes": [
    {"name": "iPhone 8", "identifier": "com.apple.CoreSimulator.SimDeviceType.iPhone-8", "productFamily": "iPhone", "maxRuntimeVersion": 1114111},
    {"name": "iPad Pro (9.7-inch)", "identifier": "com.apple.CoreSimulator.SimDeviceType.iPad-Pro--9-7-inch-"},
    {"name": "iPhone 15", "identifier": "com.apple.CoreSimulator.SimDeviceType.iPhone-15", "productFamily": "iPhone", "maxRuntimeVersion": 4294967295},
    {"name": "Apple TV", "identifier": "com.apple.CoreSimulator.SimDeviceType.Apple-TV-1080p", "productFamily": "Apple TV"},
    {"name": "iPad Air (5th generation)", "identifier": "com.apple.CoreSimulator.SimDeviceType.iPad-Air-5th-generation", "productFamily": "iPad", "maxRuntimeVersion": 4294967295}
  ],
  "runtimes": [
    {"identifier": "com.apple.CoreSimulator.SimRuntime.iOS-16-4", "name": "iOS 16.4", "version": "16.4", "isAvailable": true},
    {"identifier": "com.apple.CoreSimulator.SimRuntime.iOS-17-2", "name": "iOS 17.2", "version": "17.2", "isAvailable": true},
    {"identifier": "com.apple.CoreSimulator.SimRuntime.iOS-15-0", "name": "iOS 15.0", "version": "15.0", "isAvailable": false}
  ],
  "devices": {
    "com.apple.CoreSimulator.SimRuntime.iOS-16-4": [
      {"name": "iPhone 8", "udid": "AAAA-8", "state": "Shutdown", "deviceTypeIdentifier": "com.apple.CoreSimulator.SimDeviceType.iPhone-8", "isAvailable": true},
      {"name": "iPad Pro (9.7-inch)", "udid": "BBBB-PAD", "state": "Booted", "deviceTypeIdentifier": "com.apple.CoreSimulator.SimDeviceType.iPad-Pro--9-7-inch-", "isAvailable": true}
    ],
    "com.apple.CoreSimulator.SimRuntime.iOS-17-2": [
      {"name": "iPhone 15", "udid": "CCCC-15", "state": "Shutdown", "deviceTypeIdentifier": "com.apple.CoreSimulator.SimDeviceType.iPhone-15", "isAvailable": true},
      {"name": "iPad Air (5th generation)", "udid": "DDDD-AIR", "state": "Shutdown", "deviceTypeIdentifier": "com.apple.CoreSimulator.SimDeviceType.iPad-Air-5th-generation", "isAvailable": true},
      {"name": "iPhone 15", "udid": "EEEE-UNAV", "state": "Shutdown", "deviceTypeIdentifier": "com.apple.CoreSimulator.SimDeviceType.iPhone-15", "isAvailable": false}
    ],
    "com.apple.CoreSimulator.SimRuntime.iOS-15-0": [
      {"name": "iPhone 8", "udid": "FFFF-OLD", "state": "Booted", "deviceTypeIdentifier": "com.apple.CoreSimulator.SimDeviceType.iPhone-8", "isAvailable": true}
    ],
    "com.apple.CoreSimulator.SimRuntime.tvOS-17-2": [
      {"name": "Apple TV", "udid": "TTTT-TV", "state": "Booted", "deviceTypeIdentifier": "com.apple.CoreSimulator.SimDeviceType.Apple-TV-1080p", "isAvailable": true}
    ]
  }
}`

func mustParseCatalog(t *testing.T, data string) *Catalog {
	t.Helper()
	cat, err := ParseCatalog([]byte(data))
	if err != nil {
		t.Fatalf("ParseCatalog() error: %v", err)
	}
	return cat
}

func mustVersionKey(t *testing.T, v string) uint32 {
	t.Helper()
	key, err := VersionKey(v)
	if err != nil {
		t.Fatalf("VersionKey(%q) error: %v", v, err)
	}
	return key
}

func iPhone(name string, index int) DeviceType {
	return DeviceType{Name: name, Identifier: "com.apple.CoreSimulator.SimDeviceType." + name, ProductFamily: "iPhone", CatalogIndex: index}
}

func iPad(name string, index int) DeviceType {
	return DeviceType{Name: name, Identifier: "com.apple.CoreSimulator.SimDeviceType." + name, ProductFamily: "iPad", CatalogIndex: index}
}

func udids(instances []Instance) []string {
	var out []string
	for _, inst := range instances {
		out = append(out, inst.UDID)
	}
	return out
}

func names(deviceTypes []DeviceType) []string {
	var out []string
	for _, dt := range deviceTypes {
		out = append(out, dt.Name)
	}
	return out
}
