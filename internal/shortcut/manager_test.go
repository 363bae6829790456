package shortcut

import (
	"context"
	"errors"
	"testing"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

type fakeRegistry struct {
	active      []string
	registers   int
	unregisters int
	failOn      map[string]error
}

func (r *fakeRegistry) Register(acc Accelerator) error {
	r.registers++
	if err := r.failOn[acc.Raw]; err != nil {
		return err
	}
	r.active = append(r.active, acc.Raw)
	return nil
}

func (r *fakeRegistry) UnregisterAll() error {
	r.unregisters++
	if len(r.active) == 0 {
		return ErrNothingRegistered
	}
	r.active = nil
	return nil
}

type fakeStore struct {
	values  map[string]string
	saved   map[string]string
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}, saved: map[string]string{}}
}

func (s *fakeStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *fakeStore) Put(key, value string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.values[key] = value
	s.saved = make(map[string]string, len(s.values))
	for k, v := range s.values {
		s.saved[k] = v
	}
	return nil
}

func newTestManager(t *testing.T) (*Manager, *fakeRegistry, *fakeStore) {
	t.Helper()
	reg := &fakeRegistry{failOn: map[string]error{}}
	store := newFakeStore()
	return NewManager(reg, store), reg, store
}

func assertActive(t *testing.T, reg *fakeRegistry, want ...string) {
	t.Helper()
	if len(reg.active) != len(want) {
		t.Fatalf("active registrations = %v, want %v", reg.active, want)
	}
	for i := range want {
		if reg.active[i] != want[i] {
			t.Fatalf("active registrations = %v, want %v", reg.active, want)
		}
	}
}

func TestManager_StartDefault(t *testing.T) {
	m, reg, _ := newTestManager(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	assertActive(t, reg, DefaultAccelerator)

	b, ok := m.Binding()
	if !ok || b.Source != SourceDefault || b.Raw != DefaultAccelerator {
		t.Errorf("Binding() = %+v, %v", b, ok)
	}
}

func TestManager_StartPersisted(t *testing.T) {
	m, reg, store := newTestManager(t)
	store.values[SettingsKey] = "Alt+Space"

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	assertActive(t, reg, "Alt+Space")
	if b, _ := m.Binding(); b.Source != SourceUserSet {
		t.Errorf("Source = %q, want %q", b.Source, SourceUserSet)
	}
}

func TestManager_StartInvalidPersistedFallsBack(t *testing.T) {
	m, reg, store := newTestManager(t)
	store.values[SettingsKey] = "NotAShortcut!!"

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	assertActive(t, reg, DefaultAccelerator)
}

func TestManager_StartRegistrationFailureIsNotFatal(t *testing.T) {
	m, reg, _ := newTestManager(t)
	reg.failOn[DefaultAccelerator] = errors.New("already taken by another app")

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if _, ok := m.Binding(); ok {
		t.Error("Binding() ok after failed registration")
	}
	if got := m.Get(); got != DefaultAccelerator {
		t.Errorf("Get() = %q, want %q", got, DefaultAccelerator)
	}
}

func TestManager_SetThenGet(t *testing.T) {
	m, reg, store := newTestManager(t)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := m.Set(ctx, "Control+Alt+K"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := m.Get(); got != "Control+Alt+K" {
		t.Errorf("Get() = %q, want Control+Alt+K", got)
	}
	assertActive(t, reg, "Control+Alt+K")
	if store.saved[SettingsKey] != "Control+Alt+K" {
		t.Errorf("persisted = %q", store.saved[SettingsKey])
	}
}

func TestManager_Reset(t *testing.T) {
	m, reg, store := newTestManager(t)
	ctx := context.Background()
	if err := m.Set(ctx, "Control+Alt+K"); err != nil {
		t.Fatal(err)
	}

	if err := m.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if got := m.Get(); got != DefaultAccelerator {
		t.Errorf("Get() = %q, want %q", got, DefaultAccelerator)
	}
	assertActive(t, reg, DefaultAccelerator)
	if store.saved[SettingsKey] != DefaultAccelerator {
		t.Errorf("persisted = %q", store.saved[SettingsKey])
	}
	if b, _ := m.Binding(); b.Source != SourceDefault {
		t.Errorf("Source = %q, want %q", b.Source, SourceDefault)
	}
}

func TestManager_SetInvalidLeavesStateUnchanged(t *testing.T) {
	m, reg, store := newTestManager(t)
	ctx := context.Background()
	if err := m.Set(ctx, "Control+Alt+K"); err != nil {
		t.Fatal(err)
	}
	registers := reg.registers

	err := m.Set(ctx, "NotAShortcut!!")
	if kind := domain.KindOf(err); kind != domain.KindInvalidShortcutSyntax {
		t.Fatalf("KindOf() = %q, want %q", kind, domain.KindInvalidShortcutSyntax)
	}
	if got := m.Get(); got != "Control+Alt+K" {
		t.Errorf("Get() = %q, want Control+Alt+K", got)
	}
	if reg.registers != registers {
		t.Error("registry was touched for an invalid shortcut")
	}
	assertActive(t, reg, "Control+Alt+K")
	if store.saved[SettingsKey] != "Control+Alt+K" {
		t.Errorf("persisted = %q", store.saved[SettingsKey])
	}
}

func TestManager_SetRegistrationFailure(t *testing.T) {
	m, reg, store := newTestManager(t)
	ctx := context.Background()
	if err := m.Set(ctx, "Control+Alt+K"); err != nil {
		t.Fatal(err)
	}
	reg.failOn["Alt+F4"] = errors.New("reserved by the OS")

	err := m.Set(ctx, "Alt+F4")
	if kind := domain.KindOf(err); kind != domain.KindShortcutRegistration {
		t.Fatalf("KindOf() = %q, want %q", kind, domain.KindShortcutRegistration)
	}
	if _, ok := m.Binding(); ok {
		t.Error("Binding() ok after failed registration")
	}
	assertActive(t, reg)
	if store.saved[SettingsKey] != "Control+Alt+K" {
		t.Errorf("persisted = %q, want previous value kept", store.saved[SettingsKey])
	}
	if got := m.Get(); got != "Control+Alt+K" {
		t.Errorf("Get() = %q, want persisted value", got)
	}
}

func TestManager_SetPersistFailureRestoresPrevious(t *testing.T) {
	m, reg, store := newTestManager(t)
	ctx := context.Background()
	if err := m.Set(ctx, "Control+Alt+K"); err != nil {
		t.Fatal(err)
	}
	store.saveErr = errors.New("disk full")

	err := m.Set(ctx, "Super+J")
	if kind := domain.KindOf(err); kind != domain.KindPersistence {
		t.Fatalf("KindOf() = %q, want %q", kind, domain.KindPersistence)
	}
	assertActive(t, reg, "Control+Alt+K")
	if got := m.Get(); got != "Control+Alt+K" {
		t.Errorf("Get() = %q, want Control+Alt+K", got)
	}
	if store.values[SettingsKey] != "Control+Alt+K" {
		t.Errorf("store value = %q, want restored", store.values[SettingsKey])
	}
}

func TestManager_SetPersistFailureWithoutPrevious(t *testing.T) {
	m, reg, store := newTestManager(t)
	store.saveErr = errors.New("read-only filesystem")

	err := m.Set(context.Background(), "Super+J")
	if kind := domain.KindOf(err); kind != domain.KindPersistence {
		t.Fatalf("KindOf() = %q, want %q", kind, domain.KindPersistence)
	}
	assertActive(t, reg)
	if _, ok := store.values[SettingsKey]; ok {
		t.Error("unsaved value left in store")
	}
	if got := m.Get(); got != DefaultAccelerator {
		t.Errorf("Get() = %q, want default", got)
	}
}

func TestManager_WithDefault(t *testing.T) {
	reg := &fakeRegistry{failOn: map[string]error{}}
	m := NewManager(reg, newFakeStore(), WithDefault("Alt+Space"))

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	assertActive(t, reg, "Alt+Space")
	if m.Default() != "Alt+Space" {
		t.Errorf("Default() = %q", m.Default())
	}
}

func TestManager_Sync(t *testing.T) {
	m, reg, store := newTestManager(t)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// unchanged value is a no-op
	registers := reg.registers
	store.values[SettingsKey] = DefaultAccelerator
	if err := m.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if reg.registers != registers {
		t.Error("Sync() re-registered an unchanged shortcut")
	}

	store.values[SettingsKey] = "Alt+K"
	if err := m.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	assertActive(t, reg, "Alt+K")

	store.values[SettingsKey] = "bogus+"
	if err := m.Sync(ctx); domain.KindOf(err) != domain.KindInvalidShortcutSyntax {
		t.Errorf("Sync() error = %v, want invalid syntax", err)
	}
	assertActive(t, reg, "Alt+K")
}
