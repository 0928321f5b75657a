package simulator

import (
	"github.com/devicelab-dev/simrun/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Selector picks the best compatible device type and instance from a catalog.
type Selector struct {
	log logrus.FieldLogger
}

// NewSelector creates a Selector logging to log.
func NewSelector(log logrus.FieldLogger) *Selector {
	return &Selector{log: logger.OrDiscard(log)}
}

// Select filters and ranks the catalog. The device type and instance results
// are independent: an instance may be found without a device type and vice
// versa. Only an unparseable minimum OS version is an error.
func (s *Selector) Select(c *Catalog, cons Constraints) (Selection, error) {
	minimumOS, err := VersionKey(cons.MinimumOS)
	if err != nil {
		return Selection{}, err
	}

	deviceTypes := FilterDeviceTypes(c, minimumOS, cons.DeviceName)
	s.log.Debugf("Found %d compatible device types.", len(deviceTypes))

	instances := FilterInstances(c, deviceTypes, cons.OSVersion)
	s.log.Debugf("Found %d compatible devices.", len(instances))

	var sel Selection
	if dt, ok := best(deviceTypes, CompareDeviceTypes); ok {
		sel.DeviceType = &dt
	}
	if inst, ok := best(instances, CompareInstances); ok {
		sel.Instance = &inst
	}
	return sel, nil
}

// Select filters and ranks c without logging.
func Select(c *Catalog, cons Constraints) (Selection, error) {
	return NewSelector(nil).Select(c, cons)
}
