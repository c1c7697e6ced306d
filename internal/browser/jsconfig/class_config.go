// internal/browser/jsconfig/class_config.go
package jsconfig

import (
	"reflect"

	"github.com/dop251/goja"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
)

// Attr is a set of property attribute flags. The zero value (Empty) is a writable,
// enumerable, configurable property.
type Attr uint8

const (
	ReadOnly Attr = 1 << iota
	DontEnum
	Permanent

	Empty Attr = 0
)

func (a Attr) Has(f Attr) bool { return a&f == f }

// Flags converts the attribute set to goja's writable, enumerable and configurable flags.
func (a Attr) Flags() (writable, enumerable, configurable goja.Flag) {
	return goja.ToFlag(!a.Has(ReadOnly)), goja.ToFlag(!a.Has(DontEnum)), goja.ToFlag(!a.Has(Permanent))
}

// SymbolKey names a well-known symbol a class can key members by.
type SymbolKey int

const (
	SymbolIterator SymbolKey = iota
	SymbolToStringTag
)

func (k SymbolKey) String() string {
	switch k {
	case SymbolIterator:
		return "Symbol.iterator"
	case SymbolToStringTag:
		return "Symbol.toStringTag"
	default:
		return "Symbol(?)"
	}
}

// Scope is what member implementations see of the window scope they were wired into.
type Scope interface {
	Runtime() *goja.Runtime
	BrowserVersion() *features.BrowserVersion
}

type (
	FunctionFunc    func(s Scope, call goja.FunctionCall) goja.Value
	GetterFunc      func(s Scope, this goja.Value) goja.Value
	SetterFunc      func(s Scope, this goja.Value, value goja.Value)
	ConstructorFunc func(s Scope, call goja.ConstructorCall) *goja.Object
)

type ConstantInfo struct {
	Name  string
	Value any
	Attrs Attr
}

type PropertyInfo struct {
	Name   string
	Getter GetterFunc
	Setter SetterFunc
}

type FunctionInfo struct {
	Name     string
	Function FunctionFunc
	Length   int
}

type SymbolConstantInfo struct {
	Symbol SymbolKey
	Value  string
}

// SymbolInfo is a symbol-keyed method. When Name is set and the prototype already has a
// method of that name, the existing function object is reused under the symbol.
type SymbolInfo struct {
	Symbol   SymbolKey
	Name     string
	Function FunctionFunc
}

// ClassConfiguration is the resolved, version-specific description of one host class.
// It is immutable once its ClassSet has been built.
type ClassConfiguration struct {
	id      int
	superID int

	ClassName         string
	ExtendedClassName string
	Native            reflect.Type
	IsJSObject        bool

	Constructor      ConstructorFunc
	ConstructorAlias string

	Constants        []ConstantInfo
	Properties       []PropertyInfo
	Functions        []FunctionInfo
	StaticProperties []PropertyInfo
	StaticFunctions  []FunctionInfo
	SymbolConstants  []SymbolConstantInfo
	Symbols          []SymbolInfo
}

// ID is the arena index of the class inside its ClassSet.
func (c *ClassConfiguration) ID() int { return c.id }

// HasConstructor reports whether the class declares its own constructor.
func (c *ClassConfiguration) HasConstructor() bool { return c.Constructor != nil }

// Property looks up an instance property by name.
func (c *ClassConfiguration) Property(name string) (PropertyInfo, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyInfo{}, false
}

// Function looks up an instance function by name.
func (c *ClassConfiguration) Function(name string) (FunctionInfo, bool) {
	for _, f := range c.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionInfo{}, false
}
