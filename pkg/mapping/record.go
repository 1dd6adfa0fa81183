// Package mapping holds the table that maps modular exports of the legacy
// library to paths on its single global object, and the reverse lookup
// structure the rewrite engine queries.
package mapping

// Ref names one export of one module.
type Ref struct {
	Module string `json:"module" yaml:"module"`
	Export string `json:"export" yaml:"export"`
}

// Record declares that Export of Module is reachable at Global on the
// consolidated global object (e.g. "@ember/object" "computed" -> "Ember.computed").
//
// Replacement names an alternate modern module path resolving to the same
// global; both paths map to the identical Global.
type Record struct {
	Replacement *Ref   `json:"replacement,omitempty" yaml:"replacement,omitempty"`
	Module      string `json:"module"                yaml:"module"`
	Export      string `json:"export"                yaml:"export"`
	Global      string `json:"global"                yaml:"global"`
	LocalName   string `json:"localName,omitempty"   yaml:"localName,omitempty"`
	Deprecated  bool   `json:"deprecated,omitempty"  yaml:"deprecated,omitempty"`
}

// Key returns the record's own (module, export) pair.
func (rec Record) Key() Ref {
	return Ref{Module: rec.Module, Export: rec.Export}
}
