package simulator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devicelab-dev/simrun/pkg/core"
)

// VersionKey encodes a dotted version such as "13.2" or "13.2.3" the way
// simctl encodes maxRuntimeVersion: 0xAABBCC for major AA, minor BB and
// micro CC. Missing components count as 0, extra components are ignored and
// each component is masked to a byte.
func VersionKey(version string) (uint32, error) {
	components := append(strings.Split(version, "."), "0", "0", "0")[:3]

	var key uint32
	for _, c := range components {
		n, err := strconv.ParseUint(c, 10, 64)
		if err != nil {
			return 0, core.ErrInvalidVersion.
				WithMessage(fmt.Sprintf("invalid version string %q", version)).
				WithCause(err).
				WithDetails(map[string]interface{}{"version": version})
		}
		key = key<<8 | uint32(n&0xFF)
	}
	return key, nil
}

// FormatVersionKey renders an encoded version as major.minor.micro.
func FormatVersionKey(key uint32) string {
	return fmt.Sprintf("%d.%d.%d", (key>>16)&0xFF, (key>>8)&0xFF, key&0xFF)
}
