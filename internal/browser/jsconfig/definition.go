package jsconfig

import (
	"reflect"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
)

// MemberKind classifies a declared member.
type MemberKind int

const (
	KindConstant MemberKind = iota
	KindProperty
	KindFunction
	KindStaticProperty
	KindStaticFunction
	KindSymbolConstant
	KindSymbol
)

func (k MemberKind) String() string {
	return [...]string{"constant", "property", "function", "static property", "static function",
		"symbol constant", "symbol"}[k]
}

// Member is one row of the declarative registration table. Build members with the
// constructor helpers below and gate them with When.
type Member struct {
	Kind     MemberKind
	Name     string
	Symbol   SymbolKey
	Value    any
	Attrs    Attr
	Getter   GetterFunc
	Setter   SetterFunc
	Function FunctionFunc
	Length   int
	Gate     features.Gate
}

// When restricts the member to versions the gate allows.
func (m Member) When(g features.Gate) Member {
	m.Gate = g
	return m
}

// WithAttrs overrides the attribute set (constants only).
func (m Member) WithAttrs(a Attr) Member {
	m.Attrs = a
	return m
}

// WithLength sets the function's declared arity.
func (m Member) WithLength(n int) Member {
	m.Length = n
	return m
}

func Constant(name string, value any) Member {
	return Member{Kind: KindConstant, Name: name, Value: value, Attrs: ReadOnly | Permanent}
}

func Property(name string, get GetterFunc, set SetterFunc) Member {
	return Member{Kind: KindProperty, Name: name, Getter: get, Setter: set}
}

func Function(name string, fn FunctionFunc) Member {
	return Member{Kind: KindFunction, Name: name, Function: fn}
}

func StaticProperty(name string, get GetterFunc, set SetterFunc) Member {
	return Member{Kind: KindStaticProperty, Name: name, Getter: get, Setter: set}
}

func StaticFunction(name string, fn FunctionFunc) Member {
	return Member{Kind: KindStaticFunction, Name: name, Function: fn}
}

func SymbolConstant(sym SymbolKey, value string) Member {
	return Member{Kind: KindSymbolConstant, Symbol: sym, Value: value}
}

// Symbol declares a symbol-keyed method. name is the string-keyed method to reuse when the
// prototype already carries one (for example Symbol.iterator aliasing entries).
func Symbol(sym SymbolKey, name string, fn FunctionFunc) Member {
	return Member{Kind: KindSymbol, Symbol: sym, Name: name, Function: fn}
}

// ClassDefinition declares one host class. Extends names the superclass; it is resolved
// only after every definition for a version is known, so forward references are fine.
type ClassDefinition struct {
	Name    string
	Extends string
	// Native is the Go type whose instances are exposed with this class's prototype.
	Native reflect.Type
	// JSObject marks classes published on the window under their name.
	JSObject bool
	Gate     features.Gate

	Constructor      ConstructorFunc
	ConstructorAlias string

	Members []Member
}

// resolve filters the definition's members for a version.
func (d *ClassDefinition) resolve(v *features.BrowserVersion) *ClassConfiguration {
	c := &ClassConfiguration{
		superID:           -1,
		ClassName:         d.Name,
		ExtendedClassName: d.Extends,
		Native:            d.Native,
		IsJSObject:        d.JSObject,
		Constructor:       d.Constructor,
		ConstructorAlias:  d.ConstructorAlias,
	}
	for _, m := range d.Members {
		if !m.Gate.Allows(v) {
			continue
		}
		switch m.Kind {
		case KindConstant:
			c.Constants = append(c.Constants, ConstantInfo{Name: m.Name, Value: m.Value, Attrs: m.Attrs})
		case KindProperty:
			c.Properties = append(c.Properties, PropertyInfo{Name: m.Name, Getter: m.Getter, Setter: m.Setter})
		case KindFunction:
			c.Functions = append(c.Functions, FunctionInfo{Name: m.Name, Function: m.Function, Length: m.Length})
		case KindStaticProperty:
			c.StaticProperties = append(c.StaticProperties, PropertyInfo{Name: m.Name, Getter: m.Getter, Setter: m.Setter})
		case KindStaticFunction:
			c.StaticFunctions = append(c.StaticFunctions, FunctionInfo{Name: m.Name, Function: m.Function, Length: m.Length})
		case KindSymbolConstant:
			s, _ := m.Value.(string)
			c.SymbolConstants = append(c.SymbolConstants, SymbolConstantInfo{Symbol: m.Symbol, Value: s})
		case KindSymbol:
			c.Symbols = append(c.Symbols, SymbolInfo{Symbol: m.Symbol, Name: m.Name, Function: m.Function})
		}
	}
	return c
}
