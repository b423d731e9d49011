package ecs

import "github.com/rotisserie/eris"

var (
	ErrMissingComponentType   = eris.New("component class has no type tag")
	ErrMissingConstructor     = eris.New("component class has no constructor")
	ErrComponentNotRegistered = eris.New("component type not registered")
	ErrComponentTypeMismatch  = eris.New("component instance does not match slot type")
	ErrInvalidPlugin          = eris.New("plugin does not implement Initialize")
	ErrInvalidSystem          = eris.New("system must be a non-nil pointer")
)
