package engine

import "fmt"

// Driver defines a structure for backend engines to use when they register
// themselves as a backend which implements the Engine interface.
type Driver struct {
	// EngineType is the identifier used to uniquely identify a specific
	// engine driver.  There can only be one driver with the same type.
	EngineType string

	// Open is the function that will be invoked with all user-specified
	// arguments to open the engine environment.  This function must
	// return ErrEnvOpen if the environment cannot be initialized.
	Open func(args ...interface{}) (Engine, error)
}

// driverList holds all of the registered engine backends.
var drivers = make(map[string]*Driver)

// RegisterDriver adds a backend engine driver to available interfaces.
// ErrDriverSpecific will be returned if the driver type has already been
// registered.
func RegisterDriver(driver Driver) error {
	if _, exists := drivers[driver.EngineType]; exists {
		str := fmt.Sprintf("driver %q is already registered",
			driver.EngineType)
		return MakeError(ErrDriverSpecific, str, nil)
	}

	drivers[driver.EngineType] = &driver
	return nil
}

// SupportedDrivers returns a slice of strings that represent the engine
// drivers that have been registered and are therefore supported.
func SupportedDrivers() []string {
	supported := make([]string, 0, len(drivers))
	for _, drv := range drivers {
		supported = append(supported, drv.EngineType)
	}
	return supported
}

// Open opens an engine environment of the specified type.  The arguments are
// specific to the engine type driver.  See the documentation for the driver
// for further details.
//
// ErrEnvOpen will be returned if the engine type is not registered.
func Open(engineType string, args ...interface{}) (Engine, error) {
	drv, exists := drivers[engineType]
	if !exists {
		str := fmt.Sprintf("driver %q is not registered", engineType)
		return nil, MakeError(ErrEnvOpen, str, nil)
	}

	return drv.Open(args...)
}
