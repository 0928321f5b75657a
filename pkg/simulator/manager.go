package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/devicelab-dev/simrun/pkg/command"
	"github.com/devicelab-dev/simrun/pkg/core"
	"github.com/devicelab-dev/simrun/pkg/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBootAttempts bounds the boot wait.
	DefaultBootAttempts = 60
	// DefaultBootInterval is the pause between boot wait polls.
	DefaultBootInterval = time.Second
	// DefaultEphemeralName names simulators created for a single run.
	DefaultEphemeralName = "TestDevice"
)

var errNotBooted = errors.New("simulator not booted")

// Options configures a Manager.
type Options struct {
	DeveloperDir  string        // Xcode developer directory, for Simulator.app
	BootAttempts  int           // Boot wait polls; <= 0 means DefaultBootAttempts
	BootInterval  time.Duration // Pause between polls; zero polls back to back
	EphemeralName string        // Name prefix for ephemeral simulators
}

// DefaultOptions returns the production boot wait bound.
func DefaultOptions(developerDir string) Options {
	return Options{
		DeveloperDir:  developerDir,
		BootAttempts:  DefaultBootAttempts,
		BootInterval:  DefaultBootInterval,
		EphemeralName: DefaultEphemeralName,
	}
}

// Request describes the simulator a run needs.
type Request struct {
	Constraints
	// Ephemeral creates a throwaway simulator from Constraints.DeviceName and
	// Constraints.OSVersion instead of discovering one.
	Ephemeral bool
}

// Validate checks that an ephemeral request names both dimensions.
func (r Request) Validate() error {
	if r.Ephemeral && (r.DeviceName == "" || r.OSVersion == "") {
		return core.ErrInvalidConfig.WithMessage("ephemeral simulators need both a device name and an OS version").
			WithDetails(r.details())
	}
	return nil
}

// Handle is a simulator held for the duration of a run. Release must be
// called once the run is done; it only tears down ephemeral simulators.
type Handle struct {
	UDID string
	Mode Mode

	once       sync.Once
	releaseErr error
	release    func(ctx context.Context) error
}

// Release tears down an ephemeral simulator. It is safe to call more than
// once; later calls return the first call's result.
func (h *Handle) Release(ctx context.Context) error {
	h.once.Do(func() {
		if h.release != nil {
			h.releaseErr = h.release(ctx)
		}
	})
	return h.releaseErr
}

// Manager finds, creates, boots and tears down simulators.
type Manager struct {
	simctl   *Simctl
	exec     command.Executor
	selector *Selector
	log      logrus.FieldLogger
	opts     Options
	newName  func(prefix string) string
}

// NewManager creates a simulator manager.
func NewManager(simctl *Simctl, exec command.Executor, opts Options, log logrus.FieldLogger) *Manager {
	log = logger.OrDiscard(log)
	if opts.BootAttempts <= 0 {
		opts.BootAttempts = DefaultBootAttempts
	}
	if opts.EphemeralName == "" {
		opts.EphemeralName = DefaultEphemeralName
	}
	return &Manager{
		simctl:   simctl,
		exec:     exec,
		selector: NewSelector(log),
		log:      log,
		opts:     opts,
		newName: func(prefix string) string {
			return prefix + "-" + uuid.NewString()[:8]
		},
	}
}

// Select lists the catalog once and returns the best match for cons.
func (m *Manager) Select(ctx context.Context, cons Constraints) (*Catalog, Selection, error) {
	cat, err := m.simctl.Catalog(ctx)
	if err != nil {
		return nil, Selection{}, err
	}
	sel, err := m.selector.Select(cat, cons)
	return cat, sel, err
}

// Persistent finds or creates a compatible simulator and requests a boot if it
// is shut down. The simulator is left running when the handle is released.
func (m *Manager) Persistent(ctx context.Context, cons Constraints) (*Handle, error) {
	_, sel, err := m.Select(ctx, cons)
	if err != nil {
		return nil, err
	}

	if inst := sel.Instance; inst != nil {
		log := m.log.WithField("udid", inst.UDID)
		if inst.IsShutdown() {
			log.Debugf("Booting compatible device: %s", inst)
			if err := m.simctl.Boot(ctx, inst.UDID); err != nil {
				return nil, fmt.Errorf("boot %s: %w", inst, err)
			}
		} else {
			log.Debugf("Using compatible device: %s", inst)
		}
		return &Handle{UDID: inst.UDID, Mode: ModePersistent}, nil
	}

	if dt := sel.DeviceType; dt != nil {
		m.log.Infof("Creating new %s simulator", dt.Name)
		udid, err := m.simctl.Create(ctx, dt.Name, dt.Identifier, "")
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", dt, err)
		}
		m.log.WithField("udid", udid).Debug("Created new simulator")
		return &Handle{UDID: udid, Mode: ModePersistent}, nil
	}

	return nil, core.ErrNoCompatibleSimulator.
		WithMessage("could not find or create a simulator compatible with " + cons.String()).
		WithDetails(cons.details())
}

// Ephemeral creates a fresh simulator for device on the iOS runtime for
// osVersion, bypassing discovery. Releasing the handle shuts the simulator
// down and deletes it.
func (m *Manager) Ephemeral(ctx context.Context, device, osVersion string) (*Handle, error) {
	runtimeID := RuntimeIdentifier(osVersion)
	name := m.newName(m.opts.EphemeralName)

	m.log.WithFields(logrus.Fields{"device": device, "runtime": osVersion}).Info("Creating simulator")
	udid, err := m.simctl.Create(ctx, name, device, runtimeID)
	if err != nil {
		return nil, fmt.Errorf("create ephemeral simulator: %w", err)
	}

	h := &Handle{
		UDID: udid,
		Mode: ModeEphemeral,
		release: func(ctx context.Context) error {
			return m.teardown(ctx, udid)
		},
	}

	m.log.Info("Killing all running simulators...")
	m.killSimulatorApp(ctx)

	return h, nil
}

// teardown shuts down and deletes an ephemeral simulator. It runs even if ctx
// was canceled by an interrupt. Shutdown failures are ignored since the
// simulator may never have booted; a failed delete leaks the simulator and is
// returned.
func (m *Manager) teardown(ctx context.Context, udid string) error {
	ctx = context.WithoutCancel(ctx)
	log := m.log.WithField("udid", udid)

	log.Info("Shutting down simulator")
	if err := m.simctl.Shutdown(ctx, udid); err != nil {
		log.Debugf("Shutdown failed (ignored): %v", err)
	}

	log.Info("Deleting simulator")
	if err := m.simctl.Delete(ctx, udid); err != nil {
		return fmt.Errorf("delete simulator %s: %w", udid, err)
	}
	return nil
}

func (m *Manager) killSimulatorApp(ctx context.Context) {
	err := m.exec.Run(ctx, command.Command{Name: "pkill", Args: []string{"Simulator"}, Stderr: io.Discard})
	if err != nil {
		m.log.Debugf("pkill Simulator: %v", err)
	}
}

// Acquire returns a handle for req: an ephemeral simulator when requested,
// otherwise a persistent one.
func (m *Manager) Acquire(ctx context.Context, req Request) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Ephemeral {
		return m.Ephemeral(ctx, req.DeviceName, req.OSVersion)
	}
	return m.Persistent(ctx, req.Constraints)
}

// WithSimulator acquires a simulator, runs fn with it and releases it on every
// exit path, including a failing or panicking fn. Release errors are joined
// with fn's error.
func (m *Manager) WithSimulator(ctx context.Context, req Request, fn func(ctx context.Context, h *Handle) error) (err error) {
	h, err := m.Acquire(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := h.Release(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn(ctx, h)
}

// LaunchAndWait opens Simulator.app on udid and blocks until the simulator
// reports Booted.
func (m *Manager) LaunchAndWait(ctx context.Context, udid string) error {
	m.log.WithField("udid", udid).Info("Launching simulator")

	// Launching Simulator.app directly and then activating it through
	// osascript races the app's Apple Events registration, so open(1) is used.
	err := m.exec.Run(ctx, command.Command{
		Name: "open",
		Args: []string{"-a", SimulatorAppPath(m.opts.DeveloperDir), "--args", "-CurrentDeviceUDID", udid},
	})
	if err != nil {
		return fmt.Errorf("launch Simulator.app: %w", err)
	}
	m.log.Debug("Simulator launched.")

	return m.WaitForBoot(ctx, udid)
}

// WaitForBoot polls `simctl list devices` until udid is Booted, at most
// BootAttempts times with BootInterval between polls.
func (m *Manager) WaitForBoot(ctx context.Context, udid string) error {
	log := m.log.WithField("udid", udid)
	log.Info("Waiting for simulator to boot...")

	attempts := 0
	poll := func() error {
		attempts++
		listing, err := m.simctl.ListDevices(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if IsBooted(listing, udid) {
			log.Debug("Simulator is booted.")
			return nil
		}
		log.WithField("attempt", attempts).Debug("Simulator not booted, still waiting...")
		return errNotBooted
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if m.opts.BootAttempts > 1 {
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.BootInterval), uint64(m.opts.BootAttempts-1))
	}

	err := backoff.Retry(poll, backoff.WithContext(policy, ctx))
	if errors.Is(err, errNotBooted) {
		return core.ErrBootTimeout.
			WithMessage(fmt.Sprintf("failed to launch simulator %s within %d attempts", udid, attempts)).
			WithDetails(map[string]interface{}{"udid": udid, "attempts": attempts})
	}
	return err
}
