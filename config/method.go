package config

// ThresholdMethod names one of the four detectors C2 can use.
type ThresholdMethod string

const (
	MethodCurrie                   ThresholdMethod = "currie"
	MethodFormulaC                 ThresholdMethod = "formula_c"
	MethodCompoundPoissonLognormal ThresholdMethod = "compound_poisson_lognormal"
	MethodManual                   ThresholdMethod = "manual"
)

// validMethods maps recognized method names to validity. Unexported so
// callers can't mutate the accepted set.
var validMethods = map[ThresholdMethod]bool{
	MethodCurrie:                   true,
	MethodFormulaC:                 true,
	MethodCompoundPoissonLognormal: true,
	MethodManual:                   true,
}

// IsValidMethod returns true if name is a recognized threshold method.
func IsValidMethod(name ThresholdMethod) bool { return validMethods[name] }

// ValidMethodNames returns the recognized method names in a stable order.
func ValidMethodNames() []ThresholdMethod {
	return []ThresholdMethod{MethodCurrie, MethodFormulaC, MethodCompoundPoissonLognormal, MethodManual}
}
