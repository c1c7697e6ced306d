// internal/browser/host/classes.go
package host

import (
	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// Definitions is the host class table. Superclasses are referenced by name and may be
// declared later in the table.
func Definitions() []jsconfig.ClassDefinition {
	return []jsconfig.ClassDefinition{
		eventTargetClass(),
		eventClass(),
		webGLContextEventClass(),
		windowClass(),

		nodeClass(),
		characterDataClass(),
		textClass(),
		elementClass(),
		htmlElementClass(),
		documentClass(),
		htmlDocumentClass(),
		htmlFormElementClass(),
		htmlInputElementClass(),
		htmlImageElementClass(),
		htmlOptionElementClass(),

		htmlCollectionClass(),
		htmlFormControlsCollectionClass(),
		nodeListClass(),
		radioNodeListClass(),

		locationClass(),
		consoleClass(),
		navigatorClass(),
		urlSearchParamsClass(),
		formDataClass(),
		presentationRequestClass(),
	}
}

// NewRegistry returns a registry over the host class table.
func NewRegistry(logger *zap.Logger) *jsconfig.Registry {
	return jsconfig.NewRegistry(logger, Definitions())
}
