package jsconfig

// ClassSummary is a serializable view of a ClassConfiguration, used for diagnostics.
type ClassSummary struct {
	Name             string   `json:"name"`
	Extends          string   `json:"extends,omitempty"`
	JSObject         bool     `json:"jsObject"`
	Constructor      bool     `json:"constructor"`
	ConstructorAlias string   `json:"constructorAlias,omitempty"`
	Constants        []string `json:"constants,omitempty"`
	Properties       []string `json:"properties,omitempty"`
	Functions        []string `json:"functions,omitempty"`
	StaticProperties []string `json:"staticProperties,omitempty"`
	StaticFunctions  []string `json:"staticFunctions,omitempty"`
	Symbols          []string `json:"symbols,omitempty"`
}

// Summaries describes every class of the set in declaration order.
func (s *ClassSet) Summaries() []ClassSummary {
	out := make([]ClassSummary, 0, len(s.classes))
	for _, c := range s.classes {
		sum := ClassSummary{
			Name:             c.ClassName,
			Extends:          c.ExtendedClassName,
			JSObject:         c.IsJSObject,
			Constructor:      c.HasConstructor(),
			ConstructorAlias: c.ConstructorAlias,
		}
		for _, k := range c.Constants {
			sum.Constants = append(sum.Constants, k.Name)
		}
		for _, p := range c.Properties {
			sum.Properties = append(sum.Properties, p.Name)
		}
		for _, f := range c.Functions {
			sum.Functions = append(sum.Functions, f.Name)
		}
		for _, p := range c.StaticProperties {
			sum.StaticProperties = append(sum.StaticProperties, p.Name)
		}
		for _, f := range c.StaticFunctions {
			sum.StaticFunctions = append(sum.StaticFunctions, f.Name)
		}
		for _, sc := range c.SymbolConstants {
			sum.Symbols = append(sum.Symbols, sc.Symbol.String())
		}
		for _, sym := range c.Symbols {
			sum.Symbols = append(sum.Symbols, sym.Symbol.String())
		}
		out = append(out, sum)
	}
	return out
}
