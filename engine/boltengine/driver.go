package boltengine

import (
	"fmt"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
)

const engineType = "boltdb"

// parseArgs parses the arguments from the engine Open function which are
// expected to be the environment base path.
func parseArgs(funcName string, args ...interface{}) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("invalid arguments to %s.%s -- expected "+
			"base path", engineType, funcName)
	}

	basePath, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("first argument to %s.%s is invalid -- "+
			"expected base path string", engineType, funcName)
	}

	return basePath, nil
}

// openEngine opens the environment rooted at the provided path.
func openEngine(args ...interface{}) (engine.Engine, error) {
	basePath, err := parseArgs("Open", args...)
	if err != nil {
		return nil, engine.MakeError(engine.ErrEnvOpen, err.Error(), err)
	}

	return openEnv(basePath)
}

func init() {
	// Register the driver.
	driver := engine.Driver{EngineType: engineType, Open: openEngine}
	if err := engine.RegisterDriver(driver); err != nil {
		log.BoltLog.Errorf("Failed to register engine driver %q: %v",
			engineType, err)
		panic(fmt.Sprintf("Failed to register engine driver '%s': %v",
			engineType, err))
	}
}
