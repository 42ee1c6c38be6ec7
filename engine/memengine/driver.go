package memengine

import (
	"fmt"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
)

const engineType = "memdb"

// openEngine opens a fresh ephemeral environment.  No arguments are
// accepted.
func openEngine(args ...interface{}) (engine.Engine, error) {
	if len(args) != 0 {
		str := fmt.Sprintf("invalid arguments to %s.Open -- expected "+
			"none", engineType)
		return nil, engine.MakeError(engine.ErrEnvOpen, str, nil)
	}

	return newEnv(), nil
}

func init() {
	// Register the driver.
	driver := engine.Driver{EngineType: engineType, Open: openEngine}
	if err := engine.RegisterDriver(driver); err != nil {
		log.MemdLog.Errorf("Failed to register engine driver %q: %v",
			engineType, err)
		panic(fmt.Sprintf("Failed to register engine driver '%s': %v",
			engineType, err))
	}
}
