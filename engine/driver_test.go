package engine

import "testing"

// TestRegisterDriver ensures duplicate driver registrations are rejected.
func TestRegisterDriver(t *testing.T) {
	driver := Driver{
		EngineType: "testdriver",
		Open: func(args ...interface{}) (Engine, error) {
			return nil, nil
		},
	}
	if err := RegisterDriver(driver); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := RegisterDriver(driver)
	if !IsErrorCode(err, ErrDriverSpecific) {
		t.Fatalf("duplicate registration: got %v, want "+
			"ErrDriverSpecific", err)
	}

	found := false
	for _, name := range SupportedDrivers() {
		if name == "testdriver" {
			found = true
		}
	}
	if !found {
		t.Error("registered driver missing from SupportedDrivers")
	}
}

// TestOpenUnknownDriver ensures opening an unregistered engine type fails
// with ErrEnvOpen.
func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("no-such-driver")
	if !IsErrorCode(err, ErrEnvOpen) {
		t.Fatalf("got %v, want ErrEnvOpen", err)
	}
}
