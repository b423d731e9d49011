package plugin

import (
	"strings"

	"github.com/rotisserie/eris"
)

var (
	ErrPluginNotFound  = eris.New("plugin not found")
	ErrDuplicatePlugin = eris.New("plugin already registered")
	ErrInvalidName     = eris.New("plugin name is empty")
	ErrDependencyCycle = eris.New("plugin dependency cycle")
)

// NotFoundError reports a plugin name nobody registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return `Plugin "` + e.Name + `" not found. Make sure it is registered.`
}

func (e *NotFoundError) Is(target error) bool { return target == ErrPluginNotFound }

// CycleError reports a dependency loop. Path starts and ends with the same name.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "plugin dependency cycle: " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Is(target error) bool { return target == ErrDependencyCycle }
