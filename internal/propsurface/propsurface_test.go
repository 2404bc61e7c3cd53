package propsurface

import (
	"errors"
	"testing"

	"cam2web/internal/xerror"
)

func newTestSurface() *MapSurface {
	return NewMapSurface(
		Property{Name: "brightness", Value: "50", Min: "0", Max: "100", Default: "50"},
		Property{Name: "title", Value: "camera"},
	)
}

func TestSplitSubproperty(t *testing.T) {
	base, sub, ok := SplitSubproperty("brightness:min")
	if !ok || base != "brightness" || sub != "min" {
		t.Errorf("SplitSubproperty = %q, %q, %v", base, sub, ok)
	}
	if _, _, ok := SplitSubproperty("brightness"); ok {
		t.Error("SplitSubproperty reported a subproperty for a plain name")
	}
}

func TestGetReturnsRegisteredValue(t *testing.T) {
	s := newTestSurface()
	v, err := s.Get("brightness")
	if err != nil || v != "50" {
		t.Errorf("Get(brightness) = %q, %v", v, err)
	}
}

func TestGetUnknownPropertyFails(t *testing.T) {
	s := newTestSurface()
	_, err := s.Get("gain")
	if code, ok := xerror.As(err); !ok || code != xerror.UnknownProperty {
		t.Errorf("Get(gain) err = %v, want UnknownProperty", err)
	}
}

func TestGetSubpropertyReturnsMetadata(t *testing.T) {
	s := newTestSurface()
	if v, err := s.Get("brightness:min"); err != nil || v != "0" {
		t.Errorf("Get(brightness:min) = %q, %v", v, err)
	}
	if v, err := s.Get("brightness:max"); err != nil || v != "100" {
		t.Errorf("Get(brightness:max) = %q, %v", v, err)
	}
	if v, err := s.Get("brightness:default"); err != nil || v != "50" {
		t.Errorf("Get(brightness:default) = %q, %v", v, err)
	}
}

func TestGetSubpropertyOfUnmeteredPropertyFails(t *testing.T) {
	s := newTestSurface()
	_, err := s.Get("title:min")
	if code, ok := xerror.As(err); !ok || code != xerror.UnsupportedProperty {
		t.Errorf("Get(title:min) err = %v, want UnsupportedProperty", err)
	}
}

func TestGetSubpropertyOfUnknownBaseFails(t *testing.T) {
	s := newTestSurface()
	_, err := s.Get("gain:min")
	if code, ok := xerror.As(err); !ok || code != xerror.UnknownProperty {
		t.Errorf("Get(gain:min) err = %v, want UnknownProperty", err)
	}
}

func TestSetUpdatesValue(t *testing.T) {
	s := newTestSurface()
	if err := s.Set("brightness", "75"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := s.Get("brightness"); v != "75" {
		t.Errorf("brightness = %q, want 75", v)
	}
}

func TestSetUnknownPropertyFails(t *testing.T) {
	s := newTestSurface()
	err := s.Set("gain", "1")
	if code, ok := xerror.As(err); !ok || code != xerror.UnknownProperty {
		t.Errorf("Set(gain) err = %v, want UnknownProperty", err)
	}
}

func TestSetSubpropertyIsAlwaysReadOnly(t *testing.T) {
	s := newTestSurface()
	err := s.Set("brightness:min", "10")
	if code, ok := xerror.As(err); !ok || code != xerror.ReadOnlyProperty {
		t.Errorf("Set(brightness:min) err = %v, want ReadOnlyProperty", err)
	}
}

func TestEnumerateAllReturnsEveryProperty(t *testing.T) {
	s := newTestSurface()
	got := s.EnumerateAll()
	want := map[string]string{"brightness": "50", "title": "camera"}
	if len(got) != len(want) {
		t.Fatalf("EnumerateAll() = %#v, want %#v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("EnumerateAll()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestNamesPreservesRegistrationOrder(t *testing.T) {
	s := newTestSurface()
	want := []string{"brightness", "title"}
	got := s.Names()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestMetadataReportsUnknownProperty(t *testing.T) {
	s := newTestSurface()
	if _, ok := s.Metadata("gain"); ok {
		t.Error("Metadata(gain) ok = true, want false")
	}
	if _, ok := s.Metadata("brightness"); !ok {
		t.Error("Metadata(brightness) ok = false, want true")
	}
}

func TestXerrorAsUnwrapsSurfaceErrors(t *testing.T) {
	s := newTestSurface()
	_, err := s.Get("gain")
	if !errors.Is(err, xerror.UnknownProperty) {
		t.Errorf("errors.Is(err, UnknownProperty) = false for %v", err)
	}
}
