package simulator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/devicelab-dev/simrun/pkg/command/mock"
	"github.com/devicelab-dev/simrun/pkg/core"
)

const testSimctl = "/dev/usr/bin/simctl"

func newTestManager(exec *mock.Executor) *Manager {
	m := NewManager(NewSimctl(testSimctl, exec, nil), exec, Options{
		DeveloperDir:  "/dev",
		BootAttempts:  DefaultBootAttempts,
		BootInterval:  0,
		EphemeralName: "TestDevice",
	}, nil)
	m.newName = func(prefix string) string { return prefix + "-0000" }
	return m
}

func catalogExec() *mock.Executor {
	return mock.New().Respond("simctl list -j", sampleCatalog)
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(NewSimctl("simctl", mock.New(), nil), mock.New(), Options{}, nil)

	if m.opts.BootAttempts != DefaultBootAttempts {
		t.Errorf("BootAttempts = %d, want %d", m.opts.BootAttempts, DefaultBootAttempts)
	}
	if m.opts.EphemeralName != DefaultEphemeralName {
		t.Errorf("EphemeralName = %q, want %q", m.opts.EphemeralName, DefaultEphemeralName)
	}
	if name := m.newName("TestDevice"); !strings.HasPrefix(name, "TestDevice-") || len(name) != len("TestDevice-")+8 {
		t.Errorf("newName() = %q, want TestDevice- and 8 characters", name)
	}
}

func TestManager_PersistentUsesBootedInstance(t *testing.T) {
	exec := catalogExec()
	m := newTestManager(exec)
	cons := Constraints{MinimumOS: "15.0"}

	for i := 0; i < 2; i++ {
		h, err := m.Persistent(context.Background(), cons)
		if err != nil {
			t.Fatalf("Persistent() error: %v", err)
		}
		if h.UDID != "BBBB-PAD" {
			t.Errorf("UDID = %q, want BBBB-PAD", h.UDID)
		}
		if h.Mode != ModePersistent {
			t.Errorf("Mode = %s, want persistent", h.Mode)
		}
		if err := h.Release(context.Background()); err != nil {
			t.Errorf("Release() error: %v", err)
		}
	}

	if n := exec.Count("simctl boot"); n != 0 {
		t.Errorf("boot commands = %d, want 0", n)
	}
	if n := exec.Count("simctl create"); n != 0 {
		t.Errorf("create commands = %d, want 0", n)
	}
	if n := exec.Count("simctl delete"); n != 0 {
		t.Errorf("releasing a persistent simulator issued %d deletes", n)
	}
}

func TestManager_PersistentBootsShutdownInstance(t *testing.T) {
	exec := catalogExec()
	m := newTestManager(exec)

	h, err := m.Persistent(context.Background(), Constraints{MinimumOS: "15.0", OSVersion: "17.2"})
	if err != nil {
		t.Fatalf("Persistent() error: %v", err)
	}
	if h.UDID != "CCCC-15" {
		t.Errorf("UDID = %q, want CCCC-15", h.UDID)
	}

	want := []string{testSimctl + " list -j", testSimctl + " boot CCCC-15"}
	if got := exec.Commands(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Commands() = %v, want %v", got, want)
	}
}

func TestManager_PersistentCreatesFromDeviceType(t *testing.T) {
	exec := catalogExec().Respond("simctl create", "NEW-UDID\n")
	m := newTestManager(exec)

	h, err := m.Persistent(context.Background(), Constraints{MinimumOS: "15.0", DeviceName: "iPhone 15", OSVersion: "16.4"})
	if err != nil {
		t.Fatalf("Persistent() error: %v", err)
	}
	if h.UDID != "NEW-UDID" {
		t.Errorf("UDID = %q, want NEW-UDID", h.UDID)
	}

	want := testSimctl + " create iPhone 15 com.apple.CoreSimulator.SimDeviceType.iPhone-15"
	if i := exec.Index("simctl create"); i < 0 || exec.Commands()[i] != want {
		t.Errorf("Commands() = %v, want %q", exec.Commands(), want)
	}
	if n := exec.Count("simctl boot"); n != 0 {
		t.Errorf("boot commands = %d, want 0", n)
	}
}

func TestManager_PersistentNoCompatible(t *testing.T) {
	exec := catalogExec()
	m := newTestManager(exec)

	_, err := m.Persistent(context.Background(), Constraints{MinimumOS: "15.0", DeviceName: "Pixel"})
	if !core.IsCategory(err, core.ErrCategorySelection) {
		t.Fatalf("Persistent() error = %v, want selection error", err)
	}
	if !strings.Contains(err.Error(), "device name Pixel") {
		t.Errorf("error %q should name the constraints", err)
	}

	var e *core.Error
	if errors.As(err, &e) && e.Details["device_name"] != "Pixel" {
		t.Errorf("Details = %v", e.Details)
	}
	if n := exec.Count("simctl create") + exec.Count("simctl boot"); n != 0 {
		t.Errorf("issued %d lifecycle commands, want 0", n)
	}
}

func TestManager_PersistentBootFailure(t *testing.T) {
	exec := catalogExec().Fail("simctl boot", 149)
	m := newTestManager(exec)

	_, err := m.Persistent(context.Background(), Constraints{MinimumOS: "15.0", OSVersion: "17.2"})
	if !core.IsCategory(err, core.ErrCategoryExternalCommand) {
		t.Fatalf("Persistent() error = %v, want external command error", err)
	}
	if !strings.Contains(err.Error(), "exited with error code 149") {
		t.Errorf("error %q should carry the exit code", err)
	}
}

func TestManager_PersistentCatalogFailure(t *testing.T) {
	exec := mock.New().Fail("simctl list -j", 1)
	m := newTestManager(exec)

	if _, err := m.Persistent(context.Background(), Constraints{MinimumOS: "15.0"}); err == nil {
		t.Fatal("Persistent() should fail when simctl list fails")
	}
}

func TestManager_Ephemeral(t *testing.T) {
	exec := mock.New().Respond("simctl create", "EPH-1\n")
	m := newTestManager(exec)

	h, err := m.Ephemeral(context.Background(), "iPhone 15", "17.2")
	if err != nil {
		t.Fatalf("Ephemeral() error: %v", err)
	}
	if h.UDID != "EPH-1" || h.Mode != ModeEphemeral {
		t.Errorf("handle = %s %s, want EPH-1 ephemeral", h.UDID, h.Mode)
	}

	want := []string{
		testSimctl + " create TestDevice-0000 iPhone 15 com.apple.CoreSimulator.SimRuntime.iOS-17-2",
		"pkill Simulator",
	}
	if got := exec.Commands(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Commands() = %v, want %v", got, want)
	}
	if n := exec.Count("list -j"); n != 0 {
		t.Errorf("ephemeral mode listed the catalog %d times", n)
	}
}

func TestManager_EphemeralPkillFailureIgnored(t *testing.T) {
	exec := mock.New().Respond("simctl create", "EPH-1").Fail("pkill", 1)
	m := newTestManager(exec)

	if _, err := m.Ephemeral(context.Background(), "iPhone 15", "17.2"); err != nil {
		t.Fatalf("Ephemeral() error: %v", err)
	}
}

func TestManager_WithSimulatorEphemeralTeardown(t *testing.T) {
	exec := mock.New().Respond("simctl create", "EPH-1\n")
	m := newTestManager(exec)
	runErr := errors.New("app crashed")

	req := Request{Constraints: Constraints{MinimumOS: "15.0", DeviceName: "iPhone 15", OSVersion: "17.2"}, Ephemeral: true}
	err := m.WithSimulator(context.Background(), req, func(ctx context.Context, h *Handle) error {
		if h.UDID != "EPH-1" {
			t.Errorf("UDID = %q, want EPH-1", h.UDID)
		}
		return runErr
	})
	if !errors.Is(err, runErr) {
		t.Errorf("WithSimulator() error = %v, want %v", err, runErr)
	}

	if n := exec.Count("simctl shutdown EPH-1"); n != 1 {
		t.Errorf("shutdown commands = %d, want 1", n)
	}
	if n := exec.Count("simctl delete EPH-1"); n != 1 {
		t.Errorf("delete commands = %d, want 1", n)
	}
	create, shutdown, del := exec.Index("simctl create"), exec.Index("simctl shutdown"), exec.Index("simctl delete")
	if !(create < shutdown && shutdown < del) {
		t.Errorf("Commands() = %v, want create, shutdown, delete in order", exec.Commands())
	}
}

func TestManager_WithSimulatorTeardownAfterCancel(t *testing.T) {
	exec := mock.New().Respond("simctl create", "EPH-1")
	m := newTestManager(exec)
	ctx, cancel := context.WithCancel(context.Background())

	req := Request{Constraints: Constraints{MinimumOS: "15.0", DeviceName: "iPhone 15", OSVersion: "17.2"}, Ephemeral: true}
	err := m.WithSimulator(ctx, req, func(ctx context.Context, h *Handle) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithSimulator() error = %v, want context.Canceled", err)
	}
	if n := exec.Count("simctl delete EPH-1"); n != 1 {
		t.Errorf("delete commands after interrupt = %d, want 1", n)
	}
}

func TestManager_WithSimulatorTeardownOnPanic(t *testing.T) {
	exec := mock.New().Respond("simctl create", "EPH-1")
	m := newTestManager(exec)

	req := Request{Constraints: Constraints{MinimumOS: "15.0", DeviceName: "iPhone 15", OSVersion: "17.2"}, Ephemeral: true}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic was swallowed")
			}
		}()
		_ = m.WithSimulator(context.Background(), req, func(ctx context.Context, h *Handle) error {
			panic("boom")
		})
	}()

	if n := exec.Count("simctl delete EPH-1"); n != 1 {
		t.Errorf("delete commands after panic = %d, want 1", n)
	}
}

func TestManager_TeardownShutdownFailureSuppressed(t *testing.T) {
	exec := mock.New().Respond("simctl create", "EPH-1").Fail("simctl shutdown", 164)
	m := newTestManager(exec)

	req := Request{Constraints: Constraints{MinimumOS: "15.0", DeviceName: "iPhone 15", OSVersion: "17.2"}, Ephemeral: true}
	err := m.WithSimulator(context.Background(), req, func(context.Context, *Handle) error { return nil })
	if err != nil {
		t.Errorf("WithSimulator() error = %v, want nil", err)
	}
	if n := exec.Count("simctl delete EPH-1"); n != 1 {
		t.Errorf("delete commands = %d, want 1", n)
	}
}

func TestManager_TeardownDeleteFailureSurfaces(t *testing.T) {
	exec := mock.New().Respond("simctl create", "EPH-1").Fail("simctl delete", 1)
	m := newTestManager(exec)

	req := Request{Constraints: Constraints{MinimumOS: "15.0", DeviceName: "iPhone 15", OSVersion: "17.2"}, Ephemeral: true}
	err := m.WithSimulator(context.Background(), req, func(context.Context, *Handle) error { return nil })
	if !core.IsCategory(err, core.ErrCategoryExternalCommand) {
		t.Fatalf("WithSimulator() error = %v, want external command error", err)
	}
	if !strings.Contains(err.Error(), "EPH-1") {
		t.Errorf("error %q should name the leaked simulator", err)
	}
}

func TestHandle_ReleaseOnce(t *testing.T) {
	exec := mock.New().Respond("simctl create", "EPH-1")
	m := newTestManager(exec)

	h, err := m.Ephemeral(context.Background(), "iPhone 15", "17.2")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := h.Release(context.Background()); err != nil {
			t.Errorf("Release() error: %v", err)
		}
	}
	if n := exec.Count("simctl delete"); n != 1 {
		t.Errorf("delete commands = %d, want 1", n)
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"persistent minimum only", Request{Constraints: Constraints{MinimumOS: "15.0"}}, false},
		{"ephemeral complete", Request{Constraints: Constraints{DeviceName: "iPhone 15", OSVersion: "17.2"}, Ephemeral: true}, false},
		{"ephemeral missing os", Request{Constraints: Constraints{DeviceName: "iPhone 15"}, Ephemeral: true}, true},
		{"ephemeral missing device", Request{Constraints: Constraints{OSVersion: "17.2"}, Ephemeral: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !core.IsCategory(err, core.ErrCategoryConfiguration) {
				t.Errorf("Validate() category = %s, want configuration", core.CategoryOf(err))
			}
		})
	}
}

func TestManager_AcquireInvalidEphemeral(t *testing.T) {
	exec := mock.New()
	m := newTestManager(exec)

	_, err := m.Acquire(context.Background(), Request{Constraints: Constraints{DeviceName: "iPhone 15"}, Ephemeral: true})
	if err == nil {
		t.Fatal("Acquire() should reject an incomplete ephemeral request")
	}
	if len(exec.Calls()) != 0 {
		t.Errorf("Acquire() ran %v", exec.Commands())
	}
}

func TestManager_WaitForBootTimeout(t *testing.T) {
	exec := mock.New().Respond("simctl list devices", "-- iOS 17.2 --\n    iPhone 15 (UDID-1) (Shutdown)\n")
	m := newTestManager(exec)

	err := m.WaitForBoot(context.Background(), "UDID-1")
	if !core.IsCategory(err, core.ErrCategoryTimeout) {
		t.Fatalf("WaitForBoot() error = %v, want timeout error", err)
	}
	if n := exec.Count("simctl list devices"); n != DefaultBootAttempts {
		t.Errorf("polls = %d, want exactly %d", n, DefaultBootAttempts)
	}
}

func TestManager_WaitForBootSingleAttempt(t *testing.T) {
	exec := mock.New()
	m := NewManager(NewSimctl("simctl", exec, nil), exec, Options{BootAttempts: 1}, nil)

	if err := m.WaitForBoot(context.Background(), "UDID-1"); !core.IsCategory(err, core.ErrCategoryTimeout) {
		t.Fatalf("WaitForBoot() error = %v, want timeout error", err)
	}
	if n := exec.Count("list devices"); n != 1 {
		t.Errorf("polls = %d, want 1", n)
	}
}

func TestManager_WaitForBootEventuallyBooted(t *testing.T) {
	var polls int32
	exec := mock.New().On("simctl list devices", func(mock.Call) mock.Response {
		if atomic.AddInt32(&polls, 1) < 3 {
			return mock.Response{Stdout: "    iPhone 15 (UDID-1) (Booting)\n"}
		}
		return mock.Response{Stdout: "    iPhone 15 (UDID-1) (Booted)\n"}
	})
	m := newTestManager(exec)

	if err := m.WaitForBoot(context.Background(), "UDID-1"); err != nil {
		t.Fatalf("WaitForBoot() error: %v", err)
	}
	if n := exec.Count("simctl list devices"); n != 3 {
		t.Errorf("polls = %d, want 3", n)
	}
}

func TestManager_WaitForBootListFailure(t *testing.T) {
	exec := mock.New().Fail("simctl list devices", 1)
	m := newTestManager(exec)

	err := m.WaitForBoot(context.Background(), "UDID-1")
	if !core.IsCategory(err, core.ErrCategoryExternalCommand) {
		t.Fatalf("WaitForBoot() error = %v, want external command error", err)
	}
	if n := exec.Count("simctl list devices"); n != 1 {
		t.Errorf("polls = %d, want 1", n)
	}
}

func TestManager_WaitForBootCanceled(t *testing.T) {
	exec := mock.New()
	m := newTestManager(exec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.WaitForBoot(ctx, "UDID-1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForBoot() error = %v, want context.Canceled", err)
	}
}

func TestManager_LaunchAndWait(t *testing.T) {
	exec := mock.New().Respond("simctl list devices", "    iPhone 15 (UDID-1) (Booted)\n")
	m := newTestManager(exec)

	if err := m.LaunchAndWait(context.Background(), "UDID-1"); err != nil {
		t.Fatalf("LaunchAndWait() error: %v", err)
	}

	want := "open -a /dev/Applications/Simulator.app --args -CurrentDeviceUDID UDID-1"
	cmds := exec.Commands()
	if len(cmds) != 2 || cmds[0] != want {
		t.Errorf("Commands() = %v, want %q then one poll", cmds, want)
	}
}

func TestManager_LaunchAndWaitOpenFailure(t *testing.T) {
	exec := mock.New().Fail("open -a", 1)
	m := newTestManager(exec)

	if err := m.LaunchAndWait(context.Background(), "UDID-1"); err == nil {
		t.Fatal("LaunchAndWait() should fail when open fails")
	}
	if n := exec.Count("list devices"); n != 0 {
		t.Errorf("polled %d times after open failed", n)
	}
}
