package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable is implemented by modules that accept YAML configuration.
// The node contains the raw YAML of the module's entry under "modules".
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner is implemented by modules that need setup after instantiation:
// applying defaults, opening resources, registering services.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator is implemented by modules that can check their configuration.
// Called after Provision. Must not have side effects.
type Validator interface {
	Validate() error
}

// Starter is implemented by modules that run background work.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules that release resources on shutdown.
// Called in reverse start order.
type Stopper interface {
	Stop(ctx context.Context) error
}
