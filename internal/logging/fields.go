package logging

// Standardized attribute keys shared across components. The console handler
// promotes FieldComponent into the line prefix instead of printing it as a
// trailing key=value pair.
const (
	FieldComponent = "component"
	FieldModel     = "model"
	FieldInput     = "input"
	FieldOutput    = "output"
	FieldStem      = "stem"
	FieldSession   = "session"
)
